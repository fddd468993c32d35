package connect

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/tubebox/internal/app/notification"
	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/search"
	"github.com/osa030/tubebox/internal/domain/track"
)

// trackPayload extracts {track: {id|videoId, title}} from a request body.
func trackPayload(msg *structpb.Struct) (id, title string, ok bool) {
	if msg == nil {
		return "", "", false
	}
	raw, found := msg.GetFields()["track"]
	if !found {
		return "", "", false
	}
	obj := raw.GetStructValue()
	if obj == nil {
		return "", "", false
	}
	fields := obj.GetFields()
	id = fields["id"].GetStringValue()
	if id == "" {
		id = fields["videoId"].GetStringValue()
	}
	return id, fields["title"].GetStringValue(), true
}

func trackValue(t track.Track) map[string]any {
	return map[string]any{"id": t.ID, "title": t.Title}
}

func trackList(tracks []track.Track) []any {
	return lo.Map(tracks, func(t track.Track, _ int) any {
		return trackValue(t)
	})
}

func statusValue(s playback.Status) map[string]any {
	var current any
	if s.Current != nil {
		current = trackValue(*s.Current)
	}
	return map[string]any{
		"current":  current,
		"position": s.Position,
		"duration": s.Duration,
		"paused":   s.Paused,
		"state":    s.State.String(),
	}
}

func resultList(results []search.Result) []any {
	return lo.Map(results, func(r search.Result, _ int) any {
		return map[string]any{"id": r.Track.ID, "title": r.Track.Title, "source": r.Source}
	})
}

func notificationValue(n *notification.Notification) map[string]any {
	out := map[string]any{
		"type":     string(n.Type),
		"sequence": n.Sequence,
		"status":   statusValue(n.Status),
	}
	if n.Track != nil {
		out["track"] = trackValue(*n.Track)
	}
	if n.Queue != nil || n.Priority != nil {
		out["queue"] = trackList(n.Queue)
		out["priority"] = trackList(n.Priority)
	}
	if n.Error != "" {
		out["error"] = n.Error
	}
	return out
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode response")
	}
	return s, nil
}
