package sqlstore

import (
	"github.com/jmoiron/sqlx"

	"gardener/internal/domain"
)

const PatternsTable = "patterns"

type PatternStore = Table[domain.Pattern]

func NewPatternStore(db *sqlx.DB, schema TableSchema) *PatternStore {
	return NewTable(db, PatternMapping(), schema)
}

// PatternMapping maps domain.Pattern onto the patterns table. The retired
// state lives in the nullable t_remove column.
func PatternMapping() Mapping[domain.Pattern] {
	return Mapping[domain.Pattern]{
		Table:  PatternsTable,
		Key:    "pattern_id",
		ID:     func(p *domain.Pattern) int64 { return p.ID },
		KeyDst: func(p *domain.Pattern) any { return &p.ID },
		Fields: []Field[domain.Pattern]{
			{
				Column: "value",
				Value:  func(p *domain.Pattern) any { return p.Expression },
				Dest:   func(p *domain.Pattern) any { return stringScanner{&p.Expression} },
			},
			{
				Column: "t_add",
				Value:  func(p *domain.Pattern) any { return timeValue(p.AddedAt) },
				Dest:   func(p *domain.Pattern) any { return timeScanner{&p.AddedAt} },
			},
			{
				Column: "t_remove",
				Value:  func(p *domain.Pattern) any { return stateValue(p.State) },
				Dest:   func(p *domain.Pattern) any { return stateScanner{&p.State} },
			},
		},
	}
}

func stateValue(s domain.PatternState) any {
	at, retired := s.RetiredAt()
	if !retired {
		return nil
	}
	return timeValue(at)
}

type stateScanner struct{ dest *domain.PatternState }

func (s stateScanner) Scan(src any) error {
	at, ok, err := parseTime(src)
	if err != nil {
		return err
	}
	if ok {
		*s.dest = domain.Retired(at)
	} else {
		*s.dest = domain.PatternState{}
	}
	return nil
}
