package schema

// dependencyExtractors is the lookup table the §9 design note calls
// for: "dependency declarations belong in a lookup table keyed by
// variant tag, not on the variants themselves." Only the variants in
// dependencyBearing (variant.go) need an entry; DependenciesOf treats
// a missing entry as "no dependencies" regardless of what
// dependencyBearing says. The two tables list the same variants; no
// code checks that they stay in sync.
var dependencyExtractors = map[VariantTag]func(payload any) []ID{
	EditMessage: func(p any) []ID {
		v := p.(EditMessagePayload)
		deps := []ID{v.Target}
		if v.PrevEdit != nil {
			deps = append(deps, *v.PrevEdit)
		}
		return deps
	},
	DeleteMessage: func(p any) []ID {
		return []ID{p.(DeleteMessagePayload).Target}
	},
	MoveMessage: func(p any) []ID {
		return []ID{p.(MoveMessagePayload).Target}
	},
	ReorderMessage: func(p any) []ID {
		v := p.(ReorderMessagePayload)
		deps := []ID{v.Target}
		if v.Before != nil {
			deps = append(deps, *v.Before)
		}
		return deps
	},
	OverrideMeta: func(p any) []ID {
		return []ID{p.(OverrideMetaPayload).Target}
	},
	AddReaction: func(p any) []ID {
		return []ID{p.(AddReactionPayload).Target}
	},
	RemoveReaction: func(p any) []ID {
		return []ID{p.(RemoveReactionPayload).ReactionID}
	},
	AddBridgedReaction: func(p any) []ID {
		return []ID{p.(AddBridgedReactionPayload).Target}
	},
	RemoveBridgedReaction: func(p any) []ID {
		return []ID{p.(RemoveBridgedReactionPayload).ReactionID}
	},
	EditPage: func(p any) []ID {
		v := p.(EditPagePayload)
		deps := []ID{ID(v.Target)}
		if v.PrevEdit != nil {
			deps = append(deps, *v.PrevEdit)
		}
		return deps
	},
	RemoveRoomLink: func(p any) []ID {
		return []ID{p.(RemoveRoomLinkPayload).Target}
	},
	DeleteRoom: func(p any) []ID {
		return []ID{ID(p.(DeleteRoomPayload).Target)}
	},
	LeaveRoom: func(p any) []ID {
		return []ID{ID(p.(LeaveRoomPayload).Target)}
	},
	RemoveMember: func(p any) []ID {
		return []ID{p.(RemoveMemberPayload).TargetID}
	},
	RemoveAdmin: func(p any) []ID {
		return []ID{p.(RemoveAdminPayload).TargetID}
	},
}

// DependenciesOf returns the ids ev's payload declares a causal
// dependency on — events that must already be materialized (or parked
// waiting on the same condition) before ev can apply. Non-dependency-
// bearing variants return nil. Dependencies are always intra-stream
// (spec.md §9's resolution of the cross-stream-dependency open
// question: spacepeer never parks on an id from a different stream).
func DependenciesOf(ev Event) []ID {
	extract, ok := dependencyExtractors[ev.Variant]
	if !ok {
		return nil
	}
	return extract(ev.Payload)
}
