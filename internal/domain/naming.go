package domain

import "time"

// StrokeSource records where a character's stroke count came from.
type StrokeSource string

const (
	// StrokeSourceDictionary indicates the curated dictionary supplied the count.
	StrokeSourceDictionary StrokeSource = "dictionary"
	// StrokeSourceExternal indicates the auxiliary lookup supplied the count (via the resolution cache).
	StrokeSourceExternal StrokeSource = "external"
	// StrokeSourceUpstream indicates the candidate producer's own guess filled a gap.
	StrokeSourceUpstream StrokeSource = "upstream"
	// StrokeSourceUnknown indicates no count could be determined.
	StrokeSourceUnknown StrokeSource = "unknown"
)

// CharacterStroke pairs a single character with its stroke count. Count is zero when unresolved.
type CharacterStroke struct {
	Char   string
	Count  int
	Source StrokeSource
}

// Resolved reports whether the stroke count is known.
func (c CharacterStroke) Resolved() bool {
	return c.Count > 0 && c.Source != StrokeSourceUnknown
}

// NameBreakdown is the ordered stroke breakdown of either the surname or the given name.
type NameBreakdown struct {
	Chars []CharacterStroke
}

// Total sums resolved counts; unresolved characters contribute zero.
func (b NameBreakdown) Total() int {
	total := 0
	for _, c := range b.Chars {
		if c.Resolved() {
			total += c.Count
		}
	}
	return total
}

// Resolved reports whether every character in the breakdown has a known count.
func (b NameBreakdown) Resolved() bool {
	for _, c := range b.Chars {
		if !c.Resolved() {
			return false
		}
	}
	return true
}

// Unresolved lists the characters without a known count, in reading order.
func (b NameBreakdown) Unresolved() []string {
	var out []string
	for _, c := range b.Chars {
		if !c.Resolved() {
			out = append(out, c.Char)
		}
	}
	return out
}

// FiveGrades holds the five numerological values (天格, 地格, 人格, 総格, 外格).
type FiveGrades struct {
	Heaven   int
	Earth    int
	Human    int
	Total    int
	External int
}

// SegmentOutcome tags how a full name was split into surname and given name.
type SegmentOutcome string

const (
	// SegmentOutcomeSegmented indicates the full name carried the expected surname prefix.
	SegmentOutcomeSegmented SegmentOutcome = "segmented"
	// SegmentOutcomeSurnameMismatch indicates the prefix was missing and the whole name became the given name.
	SegmentOutcomeSurnameMismatch SegmentOutcome = "surname_mismatch"
)

// Luck captures qualitative luck labels supplied by the candidate producer.
type Luck struct {
	Overall string
	Work    string
	Love    string
	Health  string
}

// Fortune holds the qualitative fortune fields of a candidate. GradeLabels maps the grade key
// (tenkaku, jinkaku, chikaku, gaikaku, soukaku) to labels such as 大吉.
type Fortune struct {
	GradeLabels map[string]string
	Luck        Luck
	Note        string
	Extra       map[string]any
}

// StrokeHint is a character/count pair offered by the candidate producer. Counts are untrusted.
type StrokeHint struct {
	Char  string
	Count int
}

// RawCandidate is a candidate as supplied by an upstream producer, before normalization.
type RawCandidate struct {
	Name        string
	Reading     string
	Copy        string
	Story       string
	Fortune     Fortune
	StrokeHints []StrokeHint
	Extra       map[string]any
}

// Candidate is a normalized candidate whose numeric fields were recomputed from the stroke dictionary.
type Candidate struct {
	Name          string
	Reading       string
	Copy          string
	Story         string
	Fortune       Fortune
	Surname       NameBreakdown
	Given         NameBreakdown
	Grades        FiveGrades
	Segmentation  SegmentOutcome
	FullyResolved bool
	Extra         map[string]any
}

// NamingPolicy describes the counting school applied to a generation.
type NamingPolicy struct {
	Ryuha string
	Notes string
}

// NameGeneration is the result of a single naming request.
type NameGeneration struct {
	ID         string
	Surname    string
	Gender     string
	Concept    string
	Source     string
	Candidates []Candidate
	Policy     NamingPolicy
	CreatedAt  time.Time
}

// Feedback is a free-form message submitted by a visitor.
type Feedback struct {
	ID        string
	Message   string
	UserAgent string
	CreatedAt time.Time
}
