package core

import (
	"strconv"
	"strings"
)

// RoomTopic is the topic every subscriber of a room listens on.
func RoomTopic(roomID int64) string {
	return "room:" + strconv.FormatInt(roomID, 10)
}

// NotificationTopic is the personal topic of a user. Every connection of the
// user joins it on registration.
func NotificationTopic(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":notifications"
}

// topicFamily returns the prefix of a topic, used as a metrics label.
func topicFamily(topic string) string {
	family, _, _ := strings.Cut(topic, ":")
	return family
}
