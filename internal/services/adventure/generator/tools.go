package generator

import (
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

// gameToolsJSON declares the state tools offered to the model. Kept as
// JSON because that is the shape the wire expects and the api package
// unmarshals it directly.
const gameToolsJSON = `[
  {
    "type": "function",
    "function": {
      "name": "set_time",
      "description": "Update the time of day in the game world",
      "parameters": {
        "type": "object",
        "required": ["time"],
        "properties": {
          "time": {
            "type": "string",
            "description": "The time of day",
            "enum": ["Morning", "Afternoon", "Evening", "Night"]
          }
        }
      }
    }
  },
  {
    "type": "function",
    "function": {
      "name": "set_location",
      "description": "Change the player's current location",
      "parameters": {
        "type": "object",
        "required": ["location"],
        "properties": {
          "location": {
            "type": "string",
            "description": "The name of the new location"
          }
        }
      }
    }
  },
  {
    "type": "function",
    "function": {
      "name": "set_outfit",
      "description": "Change the player's outfit or equipment",
      "parameters": {
        "type": "object",
        "required": ["outfit"],
        "properties": {
          "outfit": {
            "type": "string",
            "description": "Description of the outfit or equipment"
          }
        }
      }
    }
  }
]`

var gameTools = mustParseTools(gameToolsJSON)

func mustParseTools(raw string) api.Tools {
	var tools api.Tools
	if err := json.Unmarshal([]byte(raw), &tools); err != nil {
		panic(fmt.Sprintf("game tools: %v", err))
	}
	return tools
}

// applyTool executes one state tool against snapshot in place. The
// argument key matches the snapshot attribute key for every tool.
func applyTool(name string, args map[string]any, snapshot map[string]string) error {
	var key string
	switch name {
	case "set_time":
		key = turn.AttrTime
	case "set_location":
		key = turn.AttrLocation
	case "set_outfit":
		key = turn.AttrOutfit
	default:
		return fmt.Errorf("unknown tool: %s", name)
	}
	value, ok := args[key].(string)
	if !ok {
		return fmt.Errorf("missing %q argument", key)
	}
	snapshot[key] = value
	return nil
}
