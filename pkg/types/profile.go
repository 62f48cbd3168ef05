package types

import "time"

// UserProfile is the singleton per-user entity with richer structure than a
// plain graph entity: demographics, personality, interests, preferences,
// current life context and important dates, all accumulated incrementally.
type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"` // what the agent calls the user

	Demographics   map[string]any     `json:"demographics,omitempty"`
	Personality    map[string]float64 `json:"personality,omitempty"` // trait -> score
	Interests      []string           `json:"interests,omitempty"`
	Preferences    map[string]any     `json:"preferences,omitempty"`
	LifeContext    map[string]any     `json:"life_context,omitempty"`
	ImportantDates map[string]string  `json:"important_dates,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProfile returns an empty profile with initialized maps.
func NewUserProfile() *UserProfile {
	now := time.Now()
	return &UserProfile{
		ID:             NewID(),
		Demographics:   map[string]any{},
		Personality:    map[string]float64{},
		Preferences:    map[string]any{},
		LifeContext:    map[string]any{},
		ImportantDates: map[string]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ProfileUpdate carries an incremental profile mutation. Map fields merge
// key-by-key into the existing maps; Interests extend the list with
// duplicates removed; scalar fields overwrite only when non-empty.
type ProfileUpdate struct {
	Name           string             `json:"name,omitempty"`
	Nickname       string             `json:"nickname,omitempty"`
	Demographics   map[string]any     `json:"demographics,omitempty"`
	Personality    map[string]float64 `json:"personality,omitempty"`
	Interests      []string           `json:"interests,omitempty"`
	Preferences    map[string]any     `json:"preferences,omitempty"`
	LifeContext    map[string]any     `json:"life_context,omitempty"`
	ImportantDates map[string]string  `json:"important_dates,omitempty"`
}

// Apply merges upd into the profile with dict-merge / list-extend-with-dedup
// semantics.
func (p *UserProfile) Apply(upd ProfileUpdate) {
	if upd.Name != "" {
		p.Name = upd.Name
	}
	if upd.Nickname != "" {
		p.Nickname = upd.Nickname
	}
	mergeAny(&p.Demographics, upd.Demographics)
	mergeAny(&p.Preferences, upd.Preferences)
	mergeAny(&p.LifeContext, upd.LifeContext)
	if len(upd.Personality) > 0 {
		if p.Personality == nil {
			p.Personality = map[string]float64{}
		}
		for k, v := range upd.Personality {
			p.Personality[k] = v
		}
	}
	if len(upd.ImportantDates) > 0 {
		if p.ImportantDates == nil {
			p.ImportantDates = map[string]string{}
		}
		for k, v := range upd.ImportantDates {
			p.ImportantDates[k] = v
		}
	}
	if len(upd.Interests) > 0 {
		seen := make(map[string]bool, len(p.Interests))
		for _, it := range p.Interests {
			seen[it] = true
		}
		for _, it := range upd.Interests {
			if !seen[it] {
				p.Interests = append(p.Interests, it)
				seen[it] = true
			}
		}
	}
	p.UpdatedAt = time.Now()
}

func mergeAny(dst *map[string]any, src map[string]any) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = map[string]any{}
	}
	for k, v := range src {
		(*dst)[k] = v
	}
}
