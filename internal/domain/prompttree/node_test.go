package prompttree

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestNodeJSONChildren(t *testing.T) {
	tests := []struct {
		name    string
		node    *Node
		want    string
		notWant string
	}{
		{"empty group", New(1, true), `"children":[]`, ""},
		{"group with nil children", &Node{ID: 2, IsGroup: true, Weight: 1}, `"children":[]`, ""},
		{"leaf", New(3, false), `"is_group":false`, `"children"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.node)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Fatalf("expected %s in %s", tt.want, data)
			}
			if tt.notWant != "" && strings.Contains(string(data), tt.notWant) {
				t.Fatalf("unexpected %s in %s", tt.notWant, data)
			}
		})
	}
}

func TestNodeRoundTripKeepsEmptyGroup(t *testing.T) {
	leaf := New(2, false)
	leaf.Content = "red"
	want := []*Node{New(1, true), leaf, {ID: 3, Name: "Colors", Enabled: true, Weight: 0.8, IsGroup: true, IsRandom: true, Children: []*Node{New(4, true)}}}

	data, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	var fromJSON []*Node
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, fromJSON); diff != "" {
		t.Fatalf("json round trip (-want +got):\n%s", diff)
	}

	data, err = yaml.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	var fromYAML []*Node
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, fromYAML); diff != "" {
		t.Fatalf("yaml round trip (-want +got):\n%s", diff)
	}
}

func TestDecodeGroupWithoutChildren(t *testing.T) {
	var n Node
	if err := yaml.Unmarshal([]byte("id: 7\nname: Legacy\nis_group: true\n"), &n); err != nil {
		t.Fatal(err)
	}
	if n.Children == nil || len(n.Children) != 0 || n.Weight != NeutralWeight {
		t.Fatalf("unexpected decoded group: %+v", n)
	}
}
