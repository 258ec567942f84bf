package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTaskSetStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := &Task{Status: TaskTodo}

	task.SetStatus(TaskCompleted, now)
	if !task.Completed || task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("completed status must stamp completed_at, got %+v", task)
	}

	// re-completing keeps the original timestamp
	task.SetStatus(TaskCompleted, now.Add(time.Hour))
	if !task.CompletedAt.Equal(now) {
		t.Fatalf("completed_at changed on repeated completion: %v", task.CompletedAt)
	}

	task.SetStatus(TaskInProgress, now)
	if task.Completed || task.CompletedAt != nil {
		t.Fatalf("leaving completed must clear completion, got %+v", task)
	}
}

func TestBlogPostApplyStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &BlogPost{Status: PostDraft}

	p.ApplyStatus(PostPublished, now)
	if p.PublishedAt == nil || !p.PublishedAt.Equal(now) {
		t.Fatalf("expected published_at stamped")
	}
	p.ApplyStatus(PostPublished, now.Add(time.Hour))
	if !p.PublishedAt.Equal(now) {
		t.Fatalf("published_at must not move on republish")
	}
	p.ApplyStatus(PostDraft, now)
	if p.PublishedAt != nil {
		t.Fatalf("draft must clear published_at")
	}
}

func TestJobNeedsGeocoding(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	failed := AccuracyFailed
	lat, lon := 59.9, 10.7
	recent := now.Add(-30 * time.Second)
	old := now.Add(-10 * time.Minute)

	cases := []struct {
		name string
		job  Job
		want bool
	}{
		{"no address", Job{}, false},
		{"fresh", Job{Address: "Storgata 1"}, true},
		{"has coordinates", Job{Address: "Storgata 1", Latitude: &lat, Longitude: &lon}, false},
		{"failed within backoff", Job{Address: "x", GeocodeAccuracy: &failed, GeocodeRetries: 1, LastGeocodeAttempt: &recent}, false},
		{"failed after backoff", Job{Address: "x", GeocodeAccuracy: &failed, GeocodeRetries: 1, LastGeocodeAttempt: &old}, true},
		{"retries exhausted", Job{Address: "x", GeocodeAccuracy: &failed, GeocodeRetries: MaxGeocodeRetries, LastGeocodeAttempt: &old}, false},
	}
	for _, tc := range cases {
		if got := tc.job.NeedsGeocoding(now); got != tc.want {
			t.Fatalf("%s: NeedsGeocoding = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestGeocodeBackoff(t *testing.T) {
	if GeocodeBackoff(0) != time.Minute {
		t.Fatalf("retry 0 backoff = %s", GeocodeBackoff(0))
	}
	if GeocodeBackoff(2) != 4*time.Minute {
		t.Fatalf("retry 2 backoff = %s", GeocodeBackoff(2))
	}
}

func TestCapitalizeName(t *testing.T) {
	cases := map[string]string{
		"ola":       "Ola",
		"  KARI  ":  "Kari",
		"ærlig ola": "Ærlig ola",
		"":          "",
	}
	for in, want := range cases {
		if got := CapitalizeName(in); got != want {
			t.Fatalf("CapitalizeName(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestValidationError(t *testing.T) {
	v := &ValidationError{Message: "Invalid input data"}
	if v.OrNil() != nil {
		t.Fatalf("empty validation error must be nil")
	}
	v.Add("title", "This field is required.")
	err := v.OrNil()
	if err == nil {
		t.Fatalf("expected error")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Fields["title"]) != 1 {
		t.Fatalf("unexpected fields: %+v", ve)
	}
}

func TestConflictErrorIs(t *testing.T) {
	err := error(&ConflictError{Field: "el_nr"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("conflict error must match ErrConflict")
	}
}

func TestDirectPairAndOtherUser(t *testing.T) {
	a, b := DirectPair(9, 4)
	if a != 4 || b != 9 {
		t.Fatalf("pair = %d,%d", a, b)
	}
	room := &ChatRoom{RoomType: RoomDirect, DirectUser1: &a, DirectUser2: &b}
	if room.OtherUserID(4) != 9 || room.OtherUserID(9) != 4 || room.OtherUserID(5) != 0 {
		t.Fatalf("other user lookup wrong")
	}
	room.RoomType = RoomGroup
	if room.OtherUserID(4) != 0 {
		t.Fatalf("group rooms have no other user")
	}
}

func TestReactionsApply(t *testing.T) {
	var r Reactions
	r = r.Apply("🔥", 3, true)
	r = r.Apply("🔥", 1, true)
	next := r.Apply("🔥", 1, true)
	if got := next["🔥"]; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("reactions = %v", next)
	}

	removed := next.Apply("🔥", 3, false)
	if len(next["🔥"]) != 2 {
		t.Fatalf("apply must not modify the receiver: %v", next)
	}
	removed = removed.Apply("🔥", 1, false)
	if _, ok := removed["🔥"]; ok {
		t.Fatalf("empty emoji kept: %v", removed)
	}
	if removed.Apply("👀", 2, false)["👀"] != nil {
		t.Fatalf("removing a missing reaction must be a no-op")
	}
}
