package schema

// OptionalString is a "set-or-ignore" wrapper (spec.md §4.4's
// updateRoom projection rule): Present=false means the field is absent
// from the wire payload and must be left unchanged; Present=true with
// Value=="" and Null=true means the field was explicitly cleared.
type OptionalString struct {
	Present bool
	Null    bool
	Value   string
}

// Set returns an OptionalString carrying a concrete value.
func Set(v string) OptionalString { return OptionalString{Present: true, Value: v} }

// Clear returns an OptionalString representing an explicit null.
func Clear() OptionalString { return OptionalString{Present: true, Null: true} }

// Extension is one entry of a message's NSID-keyed extension map
// (spec.md §3's "Extensions").
type Extension struct {
	NSID    string
	Payload []byte // extension-specific encoded payload
}

// ReplyExtension nsid: space.roomy.message.reply.v0
type ReplyExtension struct {
	TargetMessage ID
}

// PageCommentExtension nsid: space.roomy.message.pageComment.v0
type PageCommentExtension struct {
	PageVersion ID
	FromOffset  int
	ToOffset    int
}

// AuthorOverrideExtension nsid: space.roomy.message.authorOverride.v0
type AuthorOverrideExtension struct {
	DisplayName string
	AvatarURI   string
}

// TimestampOverrideExtension nsid: space.roomy.message.timestampOverride.v0
type TimestampOverrideExtension struct {
	UnixMilli int64
}

// AttachmentExtension nsid: space.roomy.message.attachment.v0
type AttachmentExtension struct {
	Mime string
	URI  string
	Kind string // "image" | "video" | "file"
}

// LinkPreviewExtension nsid: space.roomy.message.linkPreview.v0
type LinkPreviewExtension struct {
	URL         string
	Title       string
	Description string
	ImageURI    string
}

// DiscordOriginExtension marks an event as bridge-written so the
// reverse sync direction skips it (spec.md §4.7's origin extensions).
// Family is one of: room, message, reaction, sidebar, user, roomLink.
type DiscordOriginExtension struct {
	Family          string
	DiscordID       string
	DiscordGuildID  string
}

// --- Space-level payloads ---

type JoinSpacePayload struct {
	Space StreamID
}

type LeaveSpacePayload struct {
	Space StreamID
}

type UpdateSpaceInfoPayload struct {
	Name        OptionalString
	Avatar      OptionalString
	Description OptionalString
}

type AddAdminPayload struct {
	User UserDID
}

type RemoveAdminPayload struct {
	User     UserDID
	TargetID ID // dependency: the addAdmin event being revoked
}

type SetHandleAccountPayload struct {
	Handle Handle
}

// SidebarCategory is one entry of the ordered category list
// updateSidebar writes (spec.md §9: JSON category list is "the
// direction of travel").
type SidebarCategory struct {
	Name     string
	Children []RoomID
}

type UpdateSidebarPayload struct {
	Categories []SidebarCategory
}

// --- Room lifecycle payloads ---

type CreateRoomPayload struct {
	Kind        RoomKind
	Parent      *RoomID
	Name        string
	Avatar      string
	Description string
}

type UpdateRoomPayload struct {
	Target      RoomID
	Name        OptionalString
	Avatar      OptionalString
	Description OptionalString
}

type DeleteRoomPayload struct {
	Target RoomID
}

type JoinRoomPayload struct {
	Target RoomID
}

type LeaveRoomPayload struct {
	Target RoomID
}

type MovePayload struct {
	Target    RoomID
	NewParent *RoomID
}

type AddMemberPayload struct {
	Target RoomID
	User   UserDID
	Role   string
}

type UpdateMemberPayload struct {
	Target RoomID
	User   UserDID
	Role   OptionalString
}

type RemoveMemberPayload struct {
	Target   RoomID
	User     UserDID
	TargetID ID // dependency: the addMember event being revoked
}

// --- Message payloads ---

type CreateMessagePayload struct {
	Room       RoomID
	BodyMime   string
	Body       []byte
	Extensions []Extension
}

type EditMessagePayload struct {
	Target     ID
	PrevEdit   *ID
	BodyMime   string
	Body       []byte
	ReplyTo    *ID
}

type DeleteMessagePayload struct {
	Target ID
}

type MoveMessagePayload struct {
	Target    ID
	NewRoom   RoomID
}

type ReorderMessagePayload struct {
	Target ID
	Before *ID
}

// --- Reaction payloads ---

type AddReactionPayload struct {
	Target ID
	Emoji  string
}

type RemoveReactionPayload struct {
	ReactionID ID // dependency: the addReaction event
}

type AddBridgedReactionPayload struct {
	Target        ID
	Emoji         string
	DiscordUserID string
}

type RemoveBridgedReactionPayload struct {
	ReactionID ID // dependency: the addBridgedReaction event
}

// --- Page payloads ---

type EditPagePayload struct {
	Target   RoomID
	PrevEdit *ID
	BodyMime string
	Body     []byte
}

// --- Link payloads ---

type CreateRoomLinkPayload struct {
	From RoomID
	To   RoomID
}

type RemoveRoomLinkPayload struct {
	Target ID // dependency: the createRoomLink event
}

// --- User (personal stream) payloads ---

type OverrideMetaPayload struct {
	Target      ID // dependency: the event whose author display is overridden
	DisplayName OptionalString
	Avatar      OptionalString
}

type LastReadPayload struct {
	Target    RoomID
	Timestamp int64 // unix millis
}
