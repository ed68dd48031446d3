package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/domain"
)

func TestSendReplyBumpsParentBookkeeping(t *testing.T) {
	store, msgs, parent := newChannelFixture(t)
	ctx := context.Background()

	root, err := msgs.Send(ctx, "root message", "u1")
	require.NoError(t, err)

	thread := NewThreadService(store, parent, root.ID)
	reply, err := thread.SendReply(ctx, "a reply", "u2")
	require.NoError(t, err)
	require.NotEmpty(t, reply.ID)

	var got domain.Message
	parentPath := docstore.MessagePath(parent.DocPath(), root.ID)
	require.NoError(t, store.Get(ctx, parentPath, &got))
	assert.Equal(t, 1, got.ReplyCount)
	require.False(t, got.LastReplyAt.IsZero())
	assert.False(t, got.LastReplyAt.Before(reply.CreatedAt))

	_, err = thread.SendReply(ctx, "another", "u1")
	require.NoError(t, err)
	require.NoError(t, store.Get(ctx, parentPath, &got))
	assert.Equal(t, 2, got.ReplyCount)
}

func TestDeleteReplyDropsParentCount(t *testing.T) {
	store, msgs, parent := newChannelFixture(t)
	ctx := context.Background()

	root, err := msgs.Send(ctx, "root message", "u1")
	require.NoError(t, err)

	thread := NewThreadService(store, parent, root.ID)
	reply, err := thread.SendReply(ctx, "a reply", "u2")
	require.NoError(t, err)

	require.NoError(t, thread.DeleteReply(ctx, reply.ID))

	var got domain.Message
	parentPath := docstore.MessagePath(parent.DocPath(), root.ID)
	require.NoError(t, store.Get(ctx, parentPath, &got))
	assert.Equal(t, 0, got.ReplyCount)

	// Deleting an already-gone reply must not push the count negative.
	require.NoError(t, thread.DeleteReply(ctx, reply.ID))
	require.NoError(t, store.Get(ctx, parentPath, &got))
	assert.Equal(t, 0, got.ReplyCount)
}

func TestEditReply(t *testing.T) {
	store, msgs, parent := newChannelFixture(t)
	ctx := context.Background()

	root, err := msgs.Send(ctx, "root", "u1")
	require.NoError(t, err)
	thread := NewThreadService(store, parent, root.ID)

	reply, err := thread.SendReply(ctx, "draft", "u2")
	require.NoError(t, err)
	require.NoError(t, thread.EditReply(ctx, reply.ID, "fixed"))

	var got domain.Message
	require.NoError(t, store.Get(ctx, docstore.ThreadMessagePath(parent.DocPath(), root.ID, reply.ID), &got))
	assert.Equal(t, "fixed", got.Text)

	assert.ErrorIs(t, thread.EditReply(ctx, "missing", "text"), ErrMessageNotFound)
	assert.ErrorIs(t, thread.EditReply(ctx, reply.ID, "  "), ErrEmptyMessage)
}

func TestThreadReactionToggle(t *testing.T) {
	store, msgs, parent := newChannelFixture(t)
	ctx := context.Background()

	root, err := msgs.Send(ctx, "root", "u1")
	require.NoError(t, err)
	thread := NewThreadService(store, parent, root.ID)
	reply, err := thread.SendReply(ctx, "nice", "u2")
	require.NoError(t, err)

	require.NoError(t, thread.ToggleReaction(ctx, reply.ID, "wave", "u1"))

	var got domain.Message
	replyPath := docstore.ThreadMessagePath(parent.DocPath(), root.ID, reply.ID)
	require.NoError(t, store.Get(ctx, replyPath, &got))
	assert.Equal(t, []string{"u1"}, got.Reactions["wave"])

	require.NoError(t, thread.ToggleReaction(ctx, reply.ID, "wave", "u1"))
	got = domain.Message{}
	require.NoError(t, store.Get(ctx, replyPath, &got))
	assert.Empty(t, got.Reactions)
}

func TestThreadKeyDistinctFromContextKey(t *testing.T) {
	store, _, parent := newChannelFixture(t)
	thread := NewThreadService(store, parent, "m1")
	assert.Equal(t, "thread-m1", thread.Key())
	assert.NotEqual(t, parent.Key(), thread.Key())
}

func TestThreadSubscribeIsScopedToParent(t *testing.T) {
	store, msgs, parent := newChannelFixture(t)
	ctx := context.Background()

	root, err := msgs.Send(ctx, "root", "u1")
	require.NoError(t, err)
	other, err := msgs.Send(ctx, "other root", "u1")
	require.NoError(t, err)

	thread := NewThreadService(store, parent, root.ID)
	_, err = thread.SendReply(ctx, "only reply here", "u2")
	require.NoError(t, err)

	otherThread := NewThreadService(store, parent, other.ID)
	feed, err := otherThread.Subscribe(ctx)
	require.NoError(t, err)
	defer feed.Unsubscribe()

	replies := waitForMessages(t, feed, 0)
	assert.Empty(t, replies, "replies of a sibling thread must not leak in")
}
