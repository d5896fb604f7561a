package schema

// VariantTag is the closed set of event variants from spec.md §3,
// wire-encoded as a versioned NSID string (e.g.
// "space.roomy.message.createMessage.v0"). The open question about
// duplicate event-family tags (spec.md §9) is resolved by accepting
// the legacy "sendMessage" family on parse and mapping it to
// CreateMessage; encode only ever emits the canonical tag.
type VariantTag string

const (
	// Space-level
	JoinSpace       VariantTag = "space.roomy.space.joinSpace.v0"
	LeaveSpace      VariantTag = "space.roomy.space.leaveSpace.v0"
	UpdateSpaceInfo VariantTag = "space.roomy.space.updateSpaceInfo.v0"
	AddAdmin        VariantTag = "space.roomy.space.addAdmin.v0"
	RemoveAdmin     VariantTag = "space.roomy.space.removeAdmin.v0"
	SetHandleAccount VariantTag = "space.roomy.space.setHandleAccount.v0"
	UpdateSidebar   VariantTag = "space.roomy.space.updateSidebar.v0"

	// Room lifecycle
	CreateRoom   VariantTag = "space.roomy.room.createRoom.v0"
	UpdateRoom   VariantTag = "space.roomy.room.updateRoom.v0"
	DeleteRoom   VariantTag = "space.roomy.room.deleteRoom.v0"
	JoinRoom     VariantTag = "space.roomy.room.joinRoom.v0"
	LeaveRoom    VariantTag = "space.roomy.room.leaveRoom.v0"
	MoveRoom     VariantTag = "space.roomy.room.move.v0"
	AddMember    VariantTag = "space.roomy.room.addMember.v0"
	UpdateMember VariantTag = "space.roomy.room.updateMember.v0"
	RemoveMember VariantTag = "space.roomy.room.removeMember.v0"

	// Message
	CreateMessage  VariantTag = "space.roomy.message.createMessage.v0"
	EditMessage    VariantTag = "space.roomy.message.editMessage.v0"
	DeleteMessage  VariantTag = "space.roomy.message.deleteMessage.v0"
	MoveMessage    VariantTag = "space.roomy.message.moveMessage.v0"
	ReorderMessage VariantTag = "space.roomy.message.reorderMessage.v0"

	// legacy aliases accepted on parse only, per the §9 open question.
	legacySendMessageV0 VariantTag = "space.roomy.message.sendMessage.v0"
	legacySendMessageV1 VariantTag = "space.roomy.message.sendMessage.v1"

	// Reaction
	AddReaction           VariantTag = "space.roomy.reaction.addReaction.v0"
	RemoveReaction        VariantTag = "space.roomy.reaction.removeReaction.v0"
	AddBridgedReaction    VariantTag = "space.roomy.reaction.addBridgedReaction.v0"
	RemoveBridgedReaction VariantTag = "space.roomy.reaction.removeBridgedReaction.v0"

	// Page
	EditPage VariantTag = "space.roomy.page.editPage.v0"

	// Link
	CreateRoomLink VariantTag = "space.roomy.link.createRoomLink.v0"
	RemoveRoomLink VariantTag = "space.roomy.link.removeRoomLink.v0"

	// User (personal stream)
	OverrideMeta VariantTag = "space.roomy.user.overrideMeta.v0"
	LastRead     VariantTag = "space.roomy.user.lastRead.v0"
)

// canonicalize maps a legacy/alias tag to the canonical tag this
// build materializes under. Unknown tags pass through unchanged so
// SchemaError can report them precisely.
func canonicalize(tag VariantTag) VariantTag {
	switch tag {
	case legacySendMessageV0, legacySendMessageV1:
		return CreateMessage
	default:
		return tag
	}
}

// dependencyBearing is the closed set of variants that declare
// dependencies: message edits, deletes, moves and reorders,
// meta-overrides, reaction add/remove (bridged and native), page
// edits, room-link removal, room delete/leave, and member/admin
// removal.
var dependencyBearing = map[VariantTag]bool{
	EditMessage:           true,
	DeleteMessage:         true,
	MoveMessage:           true,
	ReorderMessage:        true,
	OverrideMeta:          true,
	AddReaction:           true,
	RemoveReaction:        true,
	AddBridgedReaction:    true,
	RemoveBridgedReaction: true,
	EditPage:              true,
	RemoveRoomLink:        true,
	DeleteRoom:            true,
	LeaveRoom:             true,
	RemoveMember:          true,
	RemoveAdmin:           true,
}

// RoomKind is the closed set of room kinds from spec.md §3.
type RoomKind string

const (
	RoomKindChannel  RoomKind = "channel"
	RoomKindCategory RoomKind = "category"
	RoomKindThread   RoomKind = "thread"
	RoomKindPage     RoomKind = "page"
)
