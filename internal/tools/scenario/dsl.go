package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is an ordered list of steps built by a Lua script.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scripted operation or expectation.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadScenarioFromFile runs a Lua script and returns the scenario it
// builds. The script calls the global scenario() constructor, queues
// steps on the result, and ends with `return s`.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerScenarioType(state)
	state.Register("scenario", scenarioNew)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return the scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned an invalid scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "start", Function: scenarioStart},
	{Name: "submit", Function: scenarioSubmit},
	{Name: "navigate", Function: scenarioNavigate},
	{Name: "end_session", Function: scenarioEndSession},
	{Name: "settings", Function: scenarioSettings},
	{Name: "expect_narrative", Function: scenarioExpectNarrative},
	{Name: "expect_choices", Function: scenarioExpectChoices},
	{Name: "expect_state", Function: scenarioExpectState},
	{Name: "expect_turn", Function: scenarioExpectTurn},
	{Name: "expect_error", Function: scenarioExpectError},
}

func scenarioStart(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "start", nil)
	return 0
}

func scenarioSubmit(state *lua.State) int {
	scenario := checkScenario(state)
	// Empty actions are allowed here so scripts can probe the rejection.
	action := lua.CheckString(state, 2)
	appendStep(scenario, "submit", map[string]any{"action": action})
	return 0
}

func scenarioNavigate(state *lua.State) int {
	scenario := checkScenario(state)
	index := lua.CheckInteger(state, 2)
	appendStep(scenario, "navigate", map[string]any{"index": index})
	return 0
}

func scenarioEndSession(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "end_session", nil)
	return 0
}

func scenarioSettings(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	data := tableToMap(state, 2)
	appendStep(scenario, "settings", data)
	return 0
}

func scenarioExpectNarrative(state *lua.State) int {
	scenario := checkScenario(state)
	contains := lua.CheckString(state, 2)
	appendStep(scenario, "expect_narrative", map[string]any{"contains": contains})
	return 0
}

func scenarioExpectChoices(state *lua.State) int {
	scenario := checkScenario(state)
	count := lua.CheckInteger(state, 2)
	appendStep(scenario, "expect_choices", map[string]any{"count": count})
	return 0
}

func scenarioExpectState(state *lua.State) int {
	scenario := checkScenario(state)
	key := lua.CheckString(state, 2)
	value := lua.CheckString(state, 3)
	appendStep(scenario, "expect_state", map[string]any{"key": key, "value": value})
	return 0
}

func scenarioExpectTurn(state *lua.State) int {
	scenario := checkScenario(state)
	index := lua.CheckInteger(state, 2)
	appendStep(scenario, "expect_turn", map[string]any{"index": index})
	return 0
}

func scenarioExpectError(state *lua.State) int {
	scenario := checkScenario(state)
	code := lua.CheckString(state, 2)
	appendStep(scenario, "expect_error", map[string]any{"code": code})
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) int {
	if scenario == nil {
		return -1
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
	return len(scenario.Steps) - 1
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

// luaToGo converts scalar step arguments. Nested tables flatten to maps;
// the step vocabulary never needs arrays.
func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToMap(state, index)
	default:
		return nil
	}
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
