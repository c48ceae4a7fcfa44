package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		notes    string
		wantBody string
		wantTags []string
	}{
		{
			name:     "empty",
			notes:    "",
			wantBody: "",
		},
		{
			name:     "no tags",
			notes:    "Buy milk",
			wantBody: "Buy milk",
		},
		{
			name:     "trailing block after blank line",
			notes:    "Discuss Q3\n\n#work #urgent",
			wantBody: "Discuss Q3",
			wantTags: []string{"urgent", "work"},
		},
		{
			name:     "block without separator",
			notes:    "Discuss Q3\n#work",
			wantBody: "Discuss Q3",
			wantTags: []string{"work"},
		},
		{
			name:     "only a tag block",
			notes:    "#home #chores",
			wantBody: "",
			wantTags: []string{"chores", "home"},
		},
		{
			name:     "mid sentence hashtag is body",
			notes:    "Talk about #work later",
			wantBody: "Talk about #work later",
		},
		{
			name:     "hashtag line not last",
			notes:    "#work\nfollow up with Sam",
			wantBody: "#work\nfollow up with Sam",
		},
		{
			name:     "trailing whitespace after block",
			notes:    "Body\n\n#a\n  \n",
			wantBody: "Body",
			wantTags: []string{"a"},
		},
		{
			name:     "bare hash is not a tag",
			notes:    "Body\n\n# #a",
			wantBody: "Body\n\n# #a",
		},
		{
			name:     "mixed case and duplicates",
			notes:    "x\n\n#Work #work #URGENT",
			wantBody: "x",
			wantTags: []string{"urgent", "work"},
		},
		{
			name:     "only one separator line is removed",
			notes:    "x\n\n\n#a",
			wantBody: "x\n",
			wantTags: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, tags := Decode(tt.notes)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, tt.wantTags, tags)
		})
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "Body", Encode("Body", nil))
	assert.Equal(t, "Body", Encode("Body", []string{"  ", "!!"}))
	assert.Equal(t, "#a #b", Encode("", []string{"b", "a"}))
	assert.Equal(t, "Body\n\n#project_x #work", Encode("Body", []string{"Work", "project x", "work"}))
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Work":          "work",
		"  urgent  ":    "urgent",
		"project  x":    "project_x",
		"follow-up":     "follow_up",
		"Q3 goals!":     "q3_goals",
		"café":          "caf",
		"snake_case_ok": "snake_case_ok",
		"!!!":           "",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestUpdate(t *testing.T) {
	notes := "Agenda\n\n#work"

	assert.Equal(t, "Agenda\n\n#urgent #work", Update(notes, []string{"Urgent"}, nil))
	assert.Equal(t, "Agenda", Update(notes, nil, []string{"WORK"}))
	assert.Equal(t, "Agenda\n\n#work", Update(notes, []string{"x"}, []string{"x"}))
	assert.Equal(t, "#a", Update("", []string{"a"}, nil))
}

func tagsGenerator() *rapid.Generator[[]string] {
	return rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9 _-]{1,12}`), 0, 6)
}

func testRoundTrip_Properties(t *rapid.T) {
	body := rapid.String().Draw(t, "body")
	raw := tagsGenerator().Draw(t, "tags")
	want := NormalizeAll(raw)
	if len(want) == 0 {
		t.Skip("no tag survives normalization")
	}

	encoded := Encode(body, raw)
	gotBody, gotTags := Decode(encoded)
	if gotBody != body {
		t.Fatalf("body mismatch: expected %q, got %q", body, gotBody)
	}
	if len(gotTags) != len(want) {
		t.Fatalf("tags mismatch: expected %v, got %v", want, gotTags)
	}
	for i := range want {
		if gotTags[i] != want[i] {
			t.Fatalf("tags mismatch: expected %v, got %v", want, gotTags)
		}
	}

	if again := Encode(gotBody, gotTags); again != encoded {
		t.Fatalf("re-encode not identical: %q vs %q", encoded, again)
	}
}

func TestRoundTrip_Properties(t *testing.T) {
	rapid.Check(t, testRoundTrip_Properties)
}

func testNormalizeFixedPoint_Properties(t *rapid.T) {
	tag := rapid.String().Draw(t, "tag")
	once := Normalize(tag)
	if twice := Normalize(once); twice != once {
		t.Fatalf("Normalize not idempotent: %q -> %q -> %q", tag, once, twice)
	}
	for _, r := range once {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			t.Fatalf("Normalize(%q) = %q contains %q", tag, once, r)
		}
	}
}

func TestNormalizeFixedPoint_Properties(t *testing.T) {
	rapid.Check(t, testNormalizeFixedPoint_Properties)
}

func testDecodeIdempotent_Properties(t *rapid.T) {
	notes := rapid.String().Draw(t, "notes")
	body, tags := Decode(notes)
	once := Encode(body, tags)
	body2, tags2 := Decode(once)
	if twice := Encode(body2, tags2); twice != once {
		t.Fatalf("decode/encode not stable: %q -> %q -> %q", notes, once, twice)
	}
}

func TestDecodeIdempotent_Properties(t *testing.T) {
	rapid.Check(t, testDecodeIdempotent_Properties)
}
