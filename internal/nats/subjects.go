package nats

import "strings"

// 房间事件 Subject 格式: {prefix}.room.{roomId}.{event}
const roomSegment = "room"

// BuildRoomSubject 构建房间事件 Subject
func BuildRoomSubject(prefix, roomID, event string) string {
	return strings.Join([]string{prefix, roomSegment, roomID, event}, ".")
}

// BuildRoomWildcard 订阅某个房间的全部事件，roomID 为空时订阅所有房间
func BuildRoomWildcard(prefix, roomID string) string {
	if roomID == "" {
		return prefix + "." + roomSegment + ".>"
	}
	return prefix + "." + roomSegment + "." + roomID + ".>"
}
