package docstore

import "strings"

// Path builders for every collection the sync core touches. The shapes are
// part of the backend contract and must not drift:
//
//	channels/{id}
//	channels/{id}/messages/{id}
//	channels/{id}/messages/{id}/threadMessages/{id}
//	conversations/{id}
//	conversations/{id}/messages/{id}
//	conversations/{id}/messages/{id}/threadMessages/{id}
//	users/{uid}

const (
	ChannelsCollection      = "channels"
	ConversationsCollection = "conversations"
	UsersCollection         = "users"

	// channelNames holds one lookup document per lowercased channel name,
	// giving name uniqueness a backend-enforced key instead of a racy
	// read-then-create check.
	ChannelNamesCollection = "channelNames"

	// Auth-provider collections. Credentials live apart from user
	// profiles so password material never rides along on user snapshots.
	UserEmailsCollection     = "userEmails"
	UsernamesCollection      = "usernames"
	CredentialsCollection    = "credentials"
	PasswordResetsCollection = "passwordResets"
)

func ChannelPath(id string) string { return ChannelsCollection + "/" + id }

func ConversationPath(id string) string { return ConversationsCollection + "/" + id }

func UserPath(uid string) string { return UsersCollection + "/" + uid }

// ChannelNamePath keys the uniqueness lookup by lowercased name.
func ChannelNamePath(name string) string {
	return ChannelNamesCollection + "/" + strings.ToLower(name)
}

func UserEmailPath(email string) string {
	return UserEmailsCollection + "/" + strings.ToLower(email)
}

func UsernamePath(username string) string {
	return UsernamesCollection + "/" + strings.ToLower(username)
}

func CredentialsPath(uid string) string { return CredentialsCollection + "/" + uid }

func PasswordResetPath(token string) string { return PasswordResetsCollection + "/" + token }

// MessagesCollection returns the message collection nested under a context
// parent document ("channels/{id}" or "conversations/{id}").
func MessagesCollection(parentDocPath string) string {
	return parentDocPath + "/messages"
}

// MessagePath addresses one message inside a context.
func MessagePath(parentDocPath, messageID string) string {
	return MessagesCollection(parentDocPath) + "/" + messageID
}

// ThreadCollection returns the reply sub-collection nested under one
// parent message.
func ThreadCollection(parentDocPath, messageID string) string {
	return MessagePath(parentDocPath, messageID) + "/threadMessages"
}

// ThreadMessagePath addresses one reply inside a thread.
func ThreadMessagePath(parentDocPath, messageID, replyID string) string {
	return ThreadCollection(parentDocPath, messageID) + "/" + replyID
}
