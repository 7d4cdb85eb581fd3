package replicated

import (
	"github.com/DoyleJ11/tourney/internal/docstore"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

func playerPath(id string, field ...string) docstore.Path {
	return append(docstore.P("players", id), field...)
}

// diff lists the field writes that turn prev into next.
func diff(prev, next tournament.State) []docstore.FieldUpdate {
	var out []docstore.FieldUpdate
	if prev.Status != next.Status {
		out = append(out, docstore.Set(docstore.P("status"), next.Status))
	}
	for id, p := range next.Players {
		old, ok := prev.Players[id]
		if !ok {
			out = append(out, docstore.Set(playerPath(id), p))
			continue
		}
		out = append(out, playerDiff(old, p)...)
	}
	for id := range prev.Players {
		if _, ok := next.Players[id]; !ok {
			out = append(out, docstore.Delete(playerPath(id)))
		}
	}
	return out
}

// playerFields restricts the write to one player's progress fields.
func playerFields(playerID string) diffFunc {
	return func(prev, next tournament.State) []docstore.FieldUpdate {
		return playerDiff(prev.Players[playerID], next.Players[playerID])
	}
}

func playerDiff(old, cur tournament.PlayerState) []docstore.FieldUpdate {
	var out []docstore.FieldUpdate
	if old.Score != cur.Score {
		out = append(out, docstore.Set(playerPath(cur.ID, "score"), cur.Score))
	}
	if old.CurrentQuestionIndex != cur.CurrentQuestionIndex {
		out = append(out, docstore.Set(playerPath(cur.ID, "currentQuestionIndex"), cur.CurrentQuestionIndex))
	}
	if old.IsFinished != cur.IsFinished {
		out = append(out, docstore.Set(playerPath(cur.ID, "isFinished"), cur.IsFinished))
	}
	return out
}
