package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	RabbitMQ        Category = "RabbitMQ"
	Storage         Category = "Storage"
	RequestResponse Category = "RequestResponse"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"
	HTTPRequest     SubCategory = "HTTPRequest"

	// Rooms
	Upload    SubCategory = "Upload"
	Retrieval SubCategory = "Retrieval"
	Allocate  SubCategory = "Allocate"
	Sweep     SubCategory = "Sweep"
	Publish   SubCategory = "Publish"
	Subscribe SubCategory = "Subscribe"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
	RoomCode     ExtraKey = "RoomCode"
	ObjectKey    ExtraKey = "ObjectKey"
	FileCount    ExtraKey = "FileCount"
	Backend      ExtraKey = "Backend"
	Evicted      ExtraKey = "Evicted"
	ClientID     ExtraKey = "ClientID"
	Event        ExtraKey = "Event"
	Removed      ExtraKey = "Removed"
)
