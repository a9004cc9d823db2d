package sim

import "testing"

func TestGeneratorIsDeterministicForSeed(t *testing.T) {
	a := NewGenerator(42)
	b := NewGenerator(42)
	for i := 0; i < 50; i++ {
		if a.NextCheck() != b.NextCheck() {
			t.Fatalf("generators diverged at step %d", i)
		}
	}
}

func TestGeneratorDrawsFromScenario(t *testing.T) {
	g := NewGenerator(7)
	personas := map[string]bool{}
	for _, p := range g.Personas() {
		personas[p.Email] = true
	}
	keys := map[string]bool{}
	for _, k := range NegotiationSeasonScenario().Keys {
		keys[k] = true
	}
	sawEntity := false
	for i := 0; i < 200; i++ {
		check := g.NextCheck()
		if !personas[check.PersonaEmail] {
			t.Fatalf("unknown persona: %q", check.PersonaEmail)
		}
		if !keys[check.Key] {
			t.Fatalf("unknown key: %q", check.Key)
		}
		if check.EntityType != "" {
			sawEntity = true
		}
	}
	if !sawEntity {
		t.Fatal("expected some entity-scoped checks")
	}
}

func TestCounter(t *testing.T) {
	var c Counter
	c.Add(true)
	c.Add(true)
	c.Add(false)
	c.AddError()
	if c.Checks != 4 || c.Allowed != 2 || c.Denied != 1 || c.Errors != 1 {
		t.Fatalf("unexpected counter: %+v", c)
	}
	if rate := c.AllowRate(); rate < 0.66 || rate > 0.67 {
		t.Fatalf("unexpected allow rate: %f", rate)
	}
}
