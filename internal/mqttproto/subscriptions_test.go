package mqttproto

import "testing"

func TestSubscriptionTrieExactMatch(t *testing.T) {
	tr := newSubscriptionTrie()
	a := &clientHandle{clientID: "handler-a"}

	if err := tr.Insert("edge/device-1/state", a); err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	if got := tr.Get("edge/device-1/state"); len(got) != 1 {
		t.Errorf("expected 1 match, got %d", len(got))
	}
	if got := tr.Get("edge/device-2/state"); len(got) != 0 {
		t.Errorf("expected no match for different topic, got %d", len(got))
	}
	if got := tr.Get("edge/device-1"); len(got) != 0 {
		t.Errorf("expected no match for partial topic, got %d", len(got))
	}
}

func TestSubscriptionTrieSingleLevelWildcard(t *testing.T) {
	tr := newSubscriptionTrie()
	if err := tr.Insert("edge/+/state", &clientHandle{clientID: "h"}); err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	cases := []struct {
		topic   string
		matches bool
	}{
		{"edge/device-1/state", true},
		{"edge/device-2/state", true},
		{"edge/state", false},
		{"edge/a/b/state", false},
		{"other/device-1/state", false},
	}

	for _, c := range cases {
		got := len(tr.Get(c.topic)) > 0
		if got != c.matches {
			t.Errorf("topic %q: expected matches=%v, got %v", c.topic, c.matches, got)
		}
	}
}

func TestSubscriptionTrieMultiLevelWildcard(t *testing.T) {
	tr := newSubscriptionTrie()
	if err := tr.Insert("edge/#", &clientHandle{clientID: "h"}); err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	cases := []struct {
		topic   string
		matches bool
	}{
		{"edge/device-1", true},
		{"edge/device-1/state", true},
		{"edge/a/b/c/d", true},
		{"other/device-1", false},
	}

	for _, c := range cases {
		got := len(tr.Get(c.topic)) > 0
		if got != c.matches {
			t.Errorf("topic %q: expected matches=%v, got %v", c.topic, c.matches, got)
		}
	}
}

func TestSubscriptionTrieMultiLevelWildcardMustBeLast(t *testing.T) {
	tr := newSubscriptionTrie()
	if err := tr.Insert("edge/#/state", &clientHandle{clientID: "h"}); err != ErrInvalidTopic {
		t.Errorf("expected ErrInvalidTopic, got %v", err)
	}
}

func TestSubscriptionTrieRemove(t *testing.T) {
	tr := newSubscriptionTrie()
	a := &clientHandle{clientID: "a"}
	b := &clientHandle{clientID: "b"}
	tr.Insert("edge/+/state", a)
	tr.Insert("edge/+/state", b)

	tr.Remove("edge/+/state", func(h *clientHandle) bool { return h == a })

	got := tr.Get("edge/device-1/state")
	if len(got) != 1 || got[0] != b {
		t.Errorf("expected only %v to remain, got %v", b, got)
	}
}
