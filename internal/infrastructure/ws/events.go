package ws

const (
	RoomWatchingEvent = "room.watching"
	RoomReadyEvent    = "room.ready"
	RoomExpiredEvent  = "room.expired"
)
