package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

func leaderboardTable(s tournament.State) pterm.TableData {
	data := pterm.TableData{{"#", "Player", "Score", "Progress"}}
	for i, p := range s.Leaderboard() {
		progress := fmt.Sprintf("%d/%d", p.CurrentQuestionIndex, len(s.Questions))
		if p.IsFinished {
			progress = "done"
		}
		data = append(data, []string{strconv.Itoa(i + 1), p.Name, strconv.Itoa(p.Score), progress})
	}
	return data
}

func lobbyTable(states []tournament.State) pterm.TableData {
	data := pterm.TableData{{"ID", "Creator", "Game", "Players", "Cards", "Created"}}
	for _, s := range states {
		data = append(data, []string{
			s.ID,
			s.CreatorID,
			string(s.GameType),
			strconv.Itoa(len(s.Players)),
			strconv.Itoa(len(s.Questions)),
			s.CreatedAt.Local().Format("15:04:05"),
		})
	}
	return data
}

// optionLabels numbers the options so duplicate images still give distinct
// labels.
func optionLabels(opts []tournament.Question) []string {
	labels := make([]string, len(opts))
	for i, q := range opts {
		label := q.ImageURL
		if label == "" {
			label = q.Text
		}
		labels[i] = fmt.Sprintf("%d) %s", i+1, label)
	}
	return labels
}

func playerNames(s tournament.State) string {
	names := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func printEvents(ctx context.Context, events <-chan protocol.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-events:
			if !ok {
				return
			}
			switch ev := m.(type) {
			case protocol.ChatMessage:
				pterm.Info.Printfln("[%s] %s", ev.Name, ev.Message)
			case protocol.Error:
				pterm.Warning.Println(ev.Reason)
			}
		}
	}
}
