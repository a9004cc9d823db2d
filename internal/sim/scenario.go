// Package sim generates synthetic permission-check traffic for load drills
// and demos of the resolver cache.
package sim

import (
	"math/rand"
	"time"
)

// Persona is a synthetic actor with known credentials and role.
type Persona struct {
	Email    string
	Password string
	Role     string
	OrgKind  string
	Label    string
}

// Check is one generated permission probe.
type Check struct {
	PersonaEmail string
	Key          string
	EntityType   string
	EntityID     string
}

// Scenario couples personas with the permission keys they exercise.
type Scenario struct {
	Name     string
	Personas []Persona
	Keys     []string
	Entities []string
}

// NegotiationSeasonScenario models a rate-review window: admins push rate
// updates while analysts and firm partners read and respond.
func NegotiationSeasonScenario() Scenario {
	return Scenario{
		Name: "NegotiationSeason",
		Personas: []Persona{
			{Email: "sim-admin@client.example", Password: "sim-pass-admin", Role: "rate_admin", OrgKind: "client", Label: "Client rate administrator"},
			{Email: "sim-analyst@client.example", Password: "sim-pass-analyst", Role: "analyst", OrgKind: "client", Label: "Client pricing analyst"},
			{Email: "sim-viewer@client.example", Password: "sim-pass-viewer", Role: "viewer", OrgKind: "client", Label: "Client read-only user"},
		},
		Keys: []string{
			"view:rates:organization",
			"update:rates:organization",
			"approve:rates:organization",
			"create:negotiations:organization",
			"view:analytics:organization",
			"export:reports:organization",
		},
		Entities: []string{"negotiation", "rate_card", "report"},
	}
}

// Generator draws checks from a scenario with a seeded source so runs are
// reproducible.
type Generator struct {
	scenario Scenario
	rnd      *rand.Rand
}

// NewGenerator seeds a generator; a zero seed falls back to the clock.
func NewGenerator(seed int64) Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return Generator{scenario: NegotiationSeasonScenario(), rnd: rand.New(rand.NewSource(seed))}
}

// NextCheck picks a persona and key. Roughly a third of checks carry an
// entity reference to exercise the entity-scoped path.
func (g Generator) NextCheck() Check {
	persona := g.scenario.Personas[g.rnd.Intn(len(g.scenario.Personas))]
	check := Check{
		PersonaEmail: persona.Email,
		Key:          g.scenario.Keys[g.rnd.Intn(len(g.scenario.Keys))],
	}
	if g.rnd.Intn(3) == 0 {
		check.EntityType = g.scenario.Entities[g.rnd.Intn(len(g.scenario.Entities))]
		check.EntityID = g.randomEntityID()
	}
	return check
}

func (g Generator) randomEntityID() string {
	const digits = "0123456789"
	buf := make([]byte, 6)
	for i := range buf {
		buf[i] = digits[g.rnd.Intn(len(digits))]
	}
	return "ent-" + string(buf)
}

// Personas returns a copy of the scenario's personas.
func (g Generator) Personas() []Persona {
	return append([]Persona(nil), g.scenario.Personas...)
}

// OverrideScenario swaps in a custom scenario.
func (g *Generator) OverrideScenario(s Scenario) {
	g.scenario = s
}
