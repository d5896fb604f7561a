package schema

// payloadCodec pairs a payload's field-writer and field-reader so
// Encode/Parse dispatch through one lookup table keyed by variant tag,
// per the design note in spec.md §9 ("dependency declarations belong
// in a lookup table keyed by variant tag, not on the variants
// themselves") — applied here to encoding as well, for the same
// reason: a tagged switch on payload type would need updating in two
// places (encode and decode) every time a variant is added, where a
// table entry is one place.
type payloadCodec struct {
	marshal   func(w *wireWriter, payload any)
	unmarshal func(r *wireReader) (any, bool)
}

var codecs map[VariantTag]payloadCodec

func init() {
	codecs = map[VariantTag]payloadCodec{
		JoinSpace: {
			marshal: func(w *wireWriter, p any) { w.putID(ID(p.(JoinSpacePayload).Space)) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return JoinSpacePayload{Space: StreamID(id)}, ok
			},
		},
		LeaveSpace: {
			marshal: func(w *wireWriter, p any) { w.putID(ID(p.(LeaveSpacePayload).Space)) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return LeaveSpacePayload{Space: StreamID(id)}, ok
			},
		},
		UpdateSpaceInfo: {
			marshal: func(w *wireWriter, p any) {
				v := p.(UpdateSpaceInfoPayload)
				w.putOptionalString(v.Name)
				w.putOptionalString(v.Avatar)
				w.putOptionalString(v.Description)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				name, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				avatar, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				desc, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				return UpdateSpaceInfoPayload{Name: name, Avatar: avatar, Description: desc}, true
			},
		},
		AddAdmin: {
			marshal: func(w *wireWriter, p any) { w.putString(string(p.(AddAdminPayload).User)) },
			unmarshal: func(r *wireReader) (any, bool) {
				s, ok := r.string()
				return AddAdminPayload{User: UserDID(s)}, ok
			},
		},
		RemoveAdmin: {
			marshal: func(w *wireWriter, p any) {
				v := p.(RemoveAdminPayload)
				w.putString(string(v.User))
				w.putID(v.TargetID)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				user, ok := r.string()
				if !ok {
					return nil, false
				}
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				return RemoveAdminPayload{User: UserDID(user), TargetID: target}, true
			},
		},
		SetHandleAccount: {
			marshal: func(w *wireWriter, p any) { w.putString(string(p.(SetHandleAccountPayload).Handle)) },
			unmarshal: func(r *wireReader) (any, bool) {
				s, ok := r.string()
				return SetHandleAccountPayload{Handle: Handle(s)}, ok
			},
		},
		UpdateSidebar: {
			marshal: func(w *wireWriter, p any) {
				v := p.(UpdateSidebarPayload)
				w.putUvarint(uint64(len(v.Categories)))
				for _, c := range v.Categories {
					w.putString(c.Name)
					w.putUvarint(uint64(len(c.Children)))
					for _, ch := range c.Children {
						w.putID(ID(ch))
					}
				}
			},
			unmarshal: func(r *wireReader) (any, bool) {
				n, ok := r.uvarint()
				if !ok {
					return nil, false
				}
				cats := make([]SidebarCategory, 0, n)
				for i := uint64(0); i < n; i++ {
					name, ok := r.string()
					if !ok {
						return nil, false
					}
					cn, ok := r.uvarint()
					if !ok {
						return nil, false
					}
					children := make([]RoomID, 0, cn)
					for j := uint64(0); j < cn; j++ {
						id, ok := r.id()
						if !ok {
							return nil, false
						}
						children = append(children, RoomID(id))
					}
					cats = append(cats, SidebarCategory{Name: name, Children: children})
				}
				return UpdateSidebarPayload{Categories: cats}, true
			},
		},
		CreateRoom: {
			marshal: func(w *wireWriter, p any) {
				v := p.(CreateRoomPayload)
				w.putString(string(v.Kind))
				parentID := Zero
				if v.Parent != nil {
					parentID = ID(*v.Parent)
				}
				w.putOptionalID(optionalIDPtr(v.Parent != nil, parentID))
				w.putString(v.Name)
				w.putString(v.Avatar)
				w.putString(v.Description)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				kind, ok := r.string()
				if !ok {
					return nil, false
				}
				parent, ok := r.optionalID()
				if !ok {
					return nil, false
				}
				name, ok := r.string()
				if !ok {
					return nil, false
				}
				avatar, ok := r.string()
				if !ok {
					return nil, false
				}
				desc, ok := r.string()
				if !ok {
					return nil, false
				}
				var parentRoom *RoomID
				if parent != nil {
					rr := RoomID(*parent)
					parentRoom = &rr
				}
				return CreateRoomPayload{Kind: RoomKind(kind), Parent: parentRoom, Name: name, Avatar: avatar, Description: desc}, true
			},
		},
		UpdateRoom: {
			marshal: func(w *wireWriter, p any) {
				v := p.(UpdateRoomPayload)
				w.putID(ID(v.Target))
				w.putOptionalString(v.Name)
				w.putOptionalString(v.Avatar)
				w.putOptionalString(v.Description)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				name, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				avatar, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				desc, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				return UpdateRoomPayload{Target: RoomID(target), Name: name, Avatar: avatar, Description: desc}, true
			},
		},
		DeleteRoom: {
			marshal: func(w *wireWriter, p any) { w.putID(ID(p.(DeleteRoomPayload).Target)) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return DeleteRoomPayload{Target: RoomID(id)}, ok
			},
		},
		JoinRoom: {
			marshal: func(w *wireWriter, p any) { w.putID(ID(p.(JoinRoomPayload).Target)) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return JoinRoomPayload{Target: RoomID(id)}, ok
			},
		},
		LeaveRoom: {
			marshal: func(w *wireWriter, p any) { w.putID(ID(p.(LeaveRoomPayload).Target)) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return LeaveRoomPayload{Target: RoomID(id)}, ok
			},
		},
		MoveRoom: {
			marshal: func(w *wireWriter, p any) {
				v := p.(MovePayload)
				w.putID(ID(v.Target))
				var np *ID
				if v.NewParent != nil {
					id := ID(*v.NewParent)
					np = &id
				}
				w.putOptionalID(np)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				np, ok := r.optionalID()
				if !ok {
					return nil, false
				}
				var newParent *RoomID
				if np != nil {
					rr := RoomID(*np)
					newParent = &rr
				}
				return MovePayload{Target: RoomID(target), NewParent: newParent}, true
			},
		},
		AddMember: {
			marshal: func(w *wireWriter, p any) {
				v := p.(AddMemberPayload)
				w.putID(ID(v.Target))
				w.putString(string(v.User))
				w.putString(v.Role)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				user, ok := r.string()
				if !ok {
					return nil, false
				}
				role, ok := r.string()
				if !ok {
					return nil, false
				}
				return AddMemberPayload{Target: RoomID(target), User: UserDID(user), Role: role}, true
			},
		},
		UpdateMember: {
			marshal: func(w *wireWriter, p any) {
				v := p.(UpdateMemberPayload)
				w.putID(ID(v.Target))
				w.putString(string(v.User))
				w.putOptionalString(v.Role)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				user, ok := r.string()
				if !ok {
					return nil, false
				}
				role, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				return UpdateMemberPayload{Target: RoomID(target), User: UserDID(user), Role: role}, true
			},
		},
		RemoveMember: {
			marshal: func(w *wireWriter, p any) {
				v := p.(RemoveMemberPayload)
				w.putID(ID(v.Target))
				w.putString(string(v.User))
				w.putID(v.TargetID)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				user, ok := r.string()
				if !ok {
					return nil, false
				}
				targetID, ok := r.id()
				if !ok {
					return nil, false
				}
				return RemoveMemberPayload{Target: RoomID(target), User: UserDID(user), TargetID: targetID}, true
			},
		},
		CreateMessage: {
			marshal: func(w *wireWriter, p any) {
				v := p.(CreateMessagePayload)
				w.putID(ID(v.Room))
				w.putString(v.BodyMime)
				w.putBytes(v.Body)
				w.putUvarint(uint64(len(v.Extensions)))
				for _, ext := range sortedExtensions(v.Extensions) {
					w.putString(ext.NSID)
					w.putBytes(ext.Payload)
				}
			},
			unmarshal: func(r *wireReader) (any, bool) {
				room, ok := r.id()
				if !ok {
					return nil, false
				}
				mime, ok := r.string()
				if !ok {
					return nil, false
				}
				body, ok := r.bytes()
				if !ok {
					return nil, false
				}
				n, ok := r.uvarint()
				if !ok {
					return nil, false
				}
				exts := make([]Extension, 0, n)
				for i := uint64(0); i < n; i++ {
					nsid, ok := r.string()
					if !ok {
						return nil, false
					}
					payload, ok := r.bytes()
					if !ok {
						return nil, false
					}
					exts = append(exts, Extension{NSID: nsid, Payload: append([]byte(nil), payload...)})
				}
				return CreateMessagePayload{Room: RoomID(room), BodyMime: mime, Body: append([]byte(nil), body...), Extensions: exts}, true
			},
		},
		EditMessage: {
			marshal: func(w *wireWriter, p any) {
				v := p.(EditMessagePayload)
				w.putID(v.Target)
				w.putOptionalID(v.PrevEdit)
				w.putString(v.BodyMime)
				w.putBytes(v.Body)
				w.putOptionalID(v.ReplyTo)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				prevEdit, ok := r.optionalID()
				if !ok {
					return nil, false
				}
				mime, ok := r.string()
				if !ok {
					return nil, false
				}
				body, ok := r.bytes()
				if !ok {
					return nil, false
				}
				replyTo, ok := r.optionalID()
				if !ok {
					return nil, false
				}
				return EditMessagePayload{Target: target, PrevEdit: prevEdit, BodyMime: mime, Body: append([]byte(nil), body...), ReplyTo: replyTo}, true
			},
		},
		DeleteMessage: {
			marshal: func(w *wireWriter, p any) { w.putID(p.(DeleteMessagePayload).Target) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return DeleteMessagePayload{Target: id}, ok
			},
		},
		MoveMessage: {
			marshal: func(w *wireWriter, p any) {
				v := p.(MoveMessagePayload)
				w.putID(v.Target)
				w.putID(ID(v.NewRoom))
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				room, ok := r.id()
				if !ok {
					return nil, false
				}
				return MoveMessagePayload{Target: target, NewRoom: RoomID(room)}, true
			},
		},
		ReorderMessage: {
			marshal: func(w *wireWriter, p any) {
				v := p.(ReorderMessagePayload)
				w.putID(v.Target)
				w.putOptionalID(v.Before)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				before, ok := r.optionalID()
				if !ok {
					return nil, false
				}
				return ReorderMessagePayload{Target: target, Before: before}, true
			},
		},
		AddReaction: {
			marshal: func(w *wireWriter, p any) {
				v := p.(AddReactionPayload)
				w.putID(v.Target)
				w.putString(v.Emoji)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				emoji, ok := r.string()
				if !ok {
					return nil, false
				}
				return AddReactionPayload{Target: target, Emoji: emoji}, true
			},
		},
		RemoveReaction: {
			marshal: func(w *wireWriter, p any) { w.putID(p.(RemoveReactionPayload).ReactionID) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return RemoveReactionPayload{ReactionID: id}, ok
			},
		},
		AddBridgedReaction: {
			marshal: func(w *wireWriter, p any) {
				v := p.(AddBridgedReactionPayload)
				w.putID(v.Target)
				w.putString(v.Emoji)
				w.putString(v.DiscordUserID)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				emoji, ok := r.string()
				if !ok {
					return nil, false
				}
				duid, ok := r.string()
				if !ok {
					return nil, false
				}
				return AddBridgedReactionPayload{Target: target, Emoji: emoji, DiscordUserID: duid}, true
			},
		},
		RemoveBridgedReaction: {
			marshal: func(w *wireWriter, p any) { w.putID(p.(RemoveBridgedReactionPayload).ReactionID) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return RemoveBridgedReactionPayload{ReactionID: id}, ok
			},
		},
		EditPage: {
			marshal: func(w *wireWriter, p any) {
				v := p.(EditPagePayload)
				w.putID(ID(v.Target))
				w.putOptionalID(v.PrevEdit)
				w.putString(v.BodyMime)
				w.putBytes(v.Body)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				prevEdit, ok := r.optionalID()
				if !ok {
					return nil, false
				}
				mime, ok := r.string()
				if !ok {
					return nil, false
				}
				body, ok := r.bytes()
				if !ok {
					return nil, false
				}
				return EditPagePayload{Target: RoomID(target), PrevEdit: prevEdit, BodyMime: mime, Body: append([]byte(nil), body...)}, true
			},
		},
		CreateRoomLink: {
			marshal: func(w *wireWriter, p any) {
				v := p.(CreateRoomLinkPayload)
				w.putID(ID(v.From))
				w.putID(ID(v.To))
			},
			unmarshal: func(r *wireReader) (any, bool) {
				from, ok := r.id()
				if !ok {
					return nil, false
				}
				to, ok := r.id()
				if !ok {
					return nil, false
				}
				return CreateRoomLinkPayload{From: RoomID(from), To: RoomID(to)}, true
			},
		},
		RemoveRoomLink: {
			marshal: func(w *wireWriter, p any) { w.putID(p.(RemoveRoomLinkPayload).Target) },
			unmarshal: func(r *wireReader) (any, bool) {
				id, ok := r.id()
				return RemoveRoomLinkPayload{Target: id}, ok
			},
		},
		OverrideMeta: {
			marshal: func(w *wireWriter, p any) {
				v := p.(OverrideMetaPayload)
				w.putID(v.Target)
				w.putOptionalString(v.DisplayName)
				w.putOptionalString(v.Avatar)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				dn, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				av, ok := r.optionalString()
				if !ok {
					return nil, false
				}
				return OverrideMetaPayload{Target: target, DisplayName: dn, Avatar: av}, true
			},
		},
		LastRead: {
			marshal: func(w *wireWriter, p any) {
				v := p.(LastReadPayload)
				w.putID(ID(v.Target))
				w.putInt64(v.Timestamp)
			},
			unmarshal: func(r *wireReader) (any, bool) {
				target, ok := r.id()
				if !ok {
					return nil, false
				}
				ts, ok := r.int64()
				if !ok {
					return nil, false
				}
				return LastReadPayload{Target: RoomID(target), Timestamp: ts}, true
			},
		},
	}
}

func optionalIDPtr(present bool, id ID) *ID {
	if !present {
		return nil
	}
	return &id
}

// sortedExtensions returns ext sorted by NSID, satisfying the
// canonical encoding's requirement that maps (here, a keyed list) are
// written in a deterministic order regardless of construction order.
func sortedExtensions(ext []Extension) []Extension {
	out := append([]Extension(nil), ext...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].NSID > out[j].NSID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
