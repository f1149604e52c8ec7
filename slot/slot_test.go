package slot

import "testing"

// Scenario 9 of the spec's testable-properties section: slot("foo") must
// differ from slot("foo{tag}") / slot("bar{tag}"), and the latter two must
// be equal to each other and to slot("tag").
func TestHashTagEquivalence(t *testing.T) {
	foo := Of([]byte("foo"))
	fooTag := Of([]byte("foo{tag}"))
	barTag := Of([]byte("bar{tag}"))
	tag := Of([]byte("tag"))

	if foo == fooTag {
		t.Fatalf("expected slot(foo) != slot(foo{tag}), both = %d", foo)
	}
	if fooTag != barTag {
		t.Fatalf("expected slot(foo{tag}) == slot(bar{tag}), got %d != %d", fooTag, barTag)
	}
	if fooTag != tag {
		t.Fatalf("expected slot(foo{tag}) == slot(tag), got %d != %d", fooTag, tag)
	}
}

func TestHashTagNoBraces(t *testing.T) {
	if got := string(HashTag([]byte("plainkey"))); got != "plainkey" {
		t.Fatalf("expected whole key, got %q", got)
	}
}

func TestHashTagEmptyBraces(t *testing.T) {
	// "{}" has zero bytes between the braces: falls back to the whole key.
	key := []byte("foo{}bar")
	if got := string(HashTag(key)); got != "foo{}bar" {
		t.Fatalf("expected whole key for empty braces, got %q", got)
	}
}

func TestHashTagUnterminated(t *testing.T) {
	key := []byte("foo{bar")
	if got := string(HashTag(key)); got != "foo{bar" {
		t.Fatalf("expected whole key for unterminated tag, got %q", got)
	}
}

func TestSlotRange(t *testing.T) {
	for _, k := range []string{"a", "b", "some-longer-key", "{tag}rest"} {
		s := Of([]byte(k))
		if s >= Count {
			t.Fatalf("slot %d out of range for key %q", s, k)
		}
	}
}
