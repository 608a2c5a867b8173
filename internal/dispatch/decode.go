package dispatch

import (
	"strings"

	"github.com/go-warden/voice/internal/model"
	apperrors "github.com/go-warden/voice/internal/pkg/errors"
)

// DecodeAction parses the opaque action id of an interaction into a tagged
// Action. This is the only place action ids are string-parsed; downstream
// code matches on the decoded form.
//
// Wire formats:
//
//	room_<op>_<roomID>
//	request_claim_<requesterID>
//	request_dispose_<outcomeKey>_<requesterID>
func DecodeAction(ev *model.InteractionEvent) (model.Action, error) {
	base := model.Action{
		ActorID:       ev.ActorID,
		InteractionID: ev.InteractionID,
		Fields:        ev.Fields,
	}

	switch {
	case strings.HasPrefix(ev.ActionID, "room_"):
		rest := strings.TrimPrefix(ev.ActionID, "room_")
		op, target, ok := strings.Cut(rest, "_")
		if !ok || target == "" {
			return model.Action{}, apperrors.New(apperrors.KindInvalidInput, "malformed room action id: "+ev.ActionID)
		}
		roomOp, ok := roomOps[op]
		if !ok {
			return model.Action{}, apperrors.New(apperrors.KindInvalidInput, "unknown room op: "+op)
		}
		base.Domain = model.DomainRoom
		base.RoomOp = roomOp
		base.TargetID = target
		return base, nil

	case strings.HasPrefix(ev.ActionID, "request_claim_"):
		target := strings.TrimPrefix(ev.ActionID, "request_claim_")
		if target == "" {
			return model.Action{}, apperrors.New(apperrors.KindInvalidInput, "malformed claim action id: "+ev.ActionID)
		}
		base.Domain = model.DomainRequest
		base.RequestOp = model.RequestOpClaim
		base.TargetID = target
		return base, nil

	case strings.HasPrefix(ev.ActionID, "request_dispose_"):
		rest := strings.TrimPrefix(ev.ActionID, "request_dispose_")
		key, target, ok := strings.Cut(rest, "_")
		if !ok || key == "" || target == "" {
			return model.Action{}, apperrors.New(apperrors.KindInvalidInput, "malformed dispose action id: "+ev.ActionID)
		}
		base.Domain = model.DomainRequest
		base.RequestOp = model.RequestOpDispose
		base.OutcomeKey = key
		base.TargetID = target
		return base, nil
	}
	return model.Action{}, apperrors.New(apperrors.KindInvalidInput, "unknown action id: "+ev.ActionID)
}

var roomOps = map[string]model.RoomOp{
	"lock":       model.RoomOpLock,
	"trust":      model.RoomOpTrust,
	"block":      model.RoomOpBlock,
	"disconnect": model.RoomOpDisconnect,
	"limit":      model.RoomOpLimit,
	"rename":     model.RoomOpRename,
}
