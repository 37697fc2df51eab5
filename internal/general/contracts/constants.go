package contracts

// Exchanges
const (
	// ExchangeBusStateFanout carries every accepted Bus mutation (the change
	// stream). Every instance binds its own queue so all broadcasters see all
	// mutations.
	ExchangeBusStateFanout = "bus_state_fanout"

	// ExchangeETAFanout carries ETA worker broadcasts. Kept separate from the
	// change stream: ETA events are derived, not store mutations.
	ExchangeETAFanout = "bus_eta_fanout"
)

// Per-instance queue name prefixes (suffix is the instance hostname).
const (
	QueueBusChangesPrefix = "bus_changes."
	QueueETAUpdatesPrefix = "bus_eta."
)

// Change kinds carried by BusChangedMessage.
const (
	ChangeKindStatus = "status" // online/offline transition via driver:toggle
	ChangeKindUpdate = "update" // accepted location sample
	ChangeKindStale  = "stale"  // staleness worker demotion
)

// ReasonStaleTimeout is attached to stale demotion events.
const ReasonStaleTimeout = "stale_timeout"

// Inbound WebSocket event types.
const (
	EventDriverToggle     = "driver:toggle"
	EventDriverMove       = "driver:move"
	EventSubscribeBus     = "subscribe:bus"
	EventSubscribeRoute   = "subscribe:route"
	EventUnsubscribeBus   = "unsubscribe:bus"
	EventUnsubscribeRoute = "unsubscribe:route"
)

// Outbound WebSocket event types.
const (
	EventDriverToggleSuccess = "driver:toggle:success"
	EventDriverToggleError   = "driver:toggle:error"
	EventDriverMoveSuccess   = "driver:move:success"
	EventDriverMoveError     = "driver:move:error"
	EventBusStatus           = "bus:status"
	EventBusUpdate           = "bus:update"
	EventRouteBuses          = "route:buses"
	EventETAUpdate           = "eta:update"
)

// Wire error codes.
const (
	CodeAuthInvalid        = "AUTH_INVALID"
	CodeAuthUnknown        = "AUTH_UNKNOWN"
	CodeNoActiveAssignment = "NO_ACTIVE_ASSIGNMENT"
	CodeInvalidCoord       = "INVALID_COORD"
	CodeInvalidSpeed       = "INVALID_SPEED"
	CodeInvalidHeading     = "INVALID_HEADING"
	CodeBadRange           = "BAD_RANGE"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
)
