package services

import (
	"context"
	"strings"

	"github.com/Seezoo1225/naming-story/internal/domain"
)

const (
	// DefaultRyuha is the counting school applied when the generator does not name one.
	DefaultRyuha = "五格法（新字体・霊数なし）"
	// DefaultPolicyNotes accompanies DefaultRyuha.
	DefaultPolicyNotes = "現代的で読みやすい表記を優先"
)

// CandidateRequest is what a generator receives for one naming request.
type CandidateRequest struct {
	Surname string
	Gender  string
	Concept string
	Count   int
}

// CandidateBatch is a generator's raw output. A zero Policy means the generator named none.
type CandidateBatch struct {
	Candidates []domain.RawCandidate
	Policy     domain.NamingPolicy
}

// CandidateGenerator proposes raw candidates. Numeric fields it returns are treated as hints only.
type CandidateGenerator interface {
	GenerateCandidates(ctx context.Context, req CandidateRequest) (CandidateBatch, error)
}

// FixtureGenerator returns three fixed candidates for debugging without a model.
type FixtureGenerator struct{}

var _ CandidateGenerator = FixtureGenerator{}

type fixture struct {
	given   string
	reading string
	copy    string
	story   string
	hints   []domain.StrokeHint
	luck    domain.Luck
}

var fixtures = []fixture{
	{
		given:   "未来志",
		reading: "みらいし",
		copy:    "未来へ進む意志を込めて。",
		story:   "新しい道を切り開き、周囲に希望を灯す人を描きます。穏やかな語り口で人の心をほぐし、迷いの先に光を示す存在です。日々の小さな積み重ねを大切にし、周囲と歩調をそろえながら前へと進みます。",
		hints:   []domain.StrokeHint{{Char: "未", Count: 5}, {Char: "志", Count: 3}},
		luck:    domain.Luck{Overall: "吉", Work: "吉", Love: "中吉", Health: "吉"},
	},
	{
		given:   "未来翔",
		reading: "みらいしょう",
		copy:    "未来へ翔ける力強さ。",
		story:   "挑戦を恐れず、高く遠くまで視野を伸ばすタイプ。仲間の背中を押しながら、困難を学びに変え、次のチャンスに結びつけます。軽やかな風のように、周囲に前向きな流れを生み出します。",
		hints:   []domain.StrokeHint{{Char: "未", Count: 5}, {Char: "翔", Count: 7}},
		luck:    domain.Luck{Overall: "吉", Work: "大吉", Love: "中吉", Health: "吉"},
	},
	{
		given:   "未来光",
		reading: "みらいこう",
		copy:    "未来を照らす光。",
		story:   "周囲にやさしい明るさをもたらし、人の長所を見つけるのが得意。静かな芯の強さを持ち、困難な時にも落ち着いて選択します。気づけば皆の目印となり、安心感を広げていきます。",
		hints:   []domain.StrokeHint{{Char: "未", Count: 5}, {Char: "光", Count: 3}},
		luck:    domain.Luck{Overall: "中吉", Work: "吉", Love: "吉", Health: "吉"},
	},
}

// GenerateCandidates implements CandidateGenerator.
func (FixtureGenerator) GenerateCandidates(_ context.Context, req CandidateRequest) (CandidateBatch, error) {
	surname := strings.TrimSpace(req.Surname)
	out := make([]domain.RawCandidate, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, domain.RawCandidate{
			Name:        surname + " " + f.given,
			Reading:     f.reading,
			Copy:        f.copy,
			Story:       f.story,
			StrokeHints: append([]domain.StrokeHint(nil), f.hints...),
			Fortune: domain.Fortune{
				Luck: f.luck,
				Note: "debug fallback",
			},
		})
	}
	return CandidateBatch{
		Candidates: out,
		Policy:     domain.NamingPolicy{Ryuha: DefaultRyuha, Notes: DefaultPolicyNotes},
	}, nil
}
