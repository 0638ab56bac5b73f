package journey

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/pointers"
)

type StepView struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	Description            string    `json:"description"`
	Latitude               float64   `json:"latitude"`
	Longitude              float64   `json:"longitude"`
	PointsAwarded          int       `json:"pointsAwarded"`
	ValidationRadiusMeters int       `json:"validationRadiusMeters"`
	HasQuiz                bool      `json:"hasQuiz"`
	Images                 []string  `json:"images"`
}

// JourneyView is a journey localized for one language and, when a user was
// given, personalized with that user's progress.
type JourneyView struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	Language             Language   `json:"language"`
	Steps                []StepView `json:"steps"`
	CurrentStepIndex     int        `json:"currentStepIndex"`
	CompletedSteps       []int      `json:"completedSteps"`
	TotalPointsEarned    int        `json:"totalPointsEarned"`
	UserProgressRecordID *uuid.UUID `json:"userProgressRecordId,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate cached views.
func (v *JourneyView) Clone() *JourneyView {
	if v == nil {
		return nil
	}
	out := *v
	out.Steps = make([]StepView, len(v.Steps))
	for i, s := range v.Steps {
		s.Images = append([]string{}, s.Images...)
		out.Steps[i] = s
	}
	out.CompletedSteps = append([]int{}, v.CompletedSteps...)
	if v.UserProgressRecordID != nil {
		out.UserProgressRecordID = pointers.Ptr(*v.UserProgressRecordID)
	}
	return &out
}

// stepIndex maps step ids to their position in the ordered step list.
type stepIndex map[uuid.UUID]int

// orderedSteps returns the journey's steps sorted by step_order, skipping
// placements whose step record is missing.
func orderedSteps(j *types.Journey) []*types.Step {
	if j == nil {
		return nil
	}
	placements := make([]*types.JourneyStep, 0, len(j.Steps))
	for _, js := range j.Steps {
		if js == nil || js.Step == nil {
			continue
		}
		placements = append(placements, js)
	}
	sort.SliceStable(placements, func(a, b int) bool {
		return placements[a].StepOrder < placements[b].StepOrder
	})
	out := make([]*types.Step, 0, len(placements))
	for _, js := range placements {
		out = append(out, js.Step)
	}
	return out
}

func indexSteps(steps []*types.Step) stepIndex {
	idx := make(stepIndex, len(steps))
	for i, s := range steps {
		if _, dup := idx[s.ID]; dup {
			continue
		}
		idx[s.ID] = i
	}
	return idx
}

// completedIndices maps completion rows onto step positions. Rows for steps
// outside the journey are dropped; points are summed over the rows kept.
func completedIndices(rows []*types.StepCompletion, idx stepIndex) ([]int, int) {
	seen := map[int]bool{}
	points := 0
	for _, row := range rows {
		if row == nil {
			continue
		}
		i, ok := idx[row.StepID]
		if !ok {
			continue
		}
		points += row.PointsEarned
		seen[i] = true
	}
	return sortedKeys(seen), points
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func localizeStep(s *types.Step, lang Language) StepView {
	return StepView{
		ID:                     s.ID,
		Name:                   Localize(s.Name, map[Language]string{English: s.NameEn, Spanish: s.NameEs}, lang),
		Description:            Localize(s.Description, map[Language]string{English: s.DescriptionEn, Spanish: s.DescriptionEs}, lang),
		Latitude:               s.Latitude,
		Longitude:              s.Longitude,
		PointsAwarded:          s.PointsAwarded,
		ValidationRadiusMeters: s.ValidationRadiusMeters,
		HasQuiz:                s.HasQuiz,
		Images:                 parseImages(s.Images),
	}
}

// parseImages accepts a JSON array of strings; anything else yields none.
func parseImages(raw []byte) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
