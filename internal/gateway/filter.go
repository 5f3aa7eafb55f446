package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// msgFilter wraps a compiled CEL program evaluated per delivered message.
// When disabled (empty expression), Eval always returns true.
type msgFilter struct {
	prog    cel.Program
	enabled bool
}

// FilterInput carries the evaluation context for one broadcast.
type FilterInput struct {
	Channel string
	Text    string
	TsMs    int64
}

func newMsgFilter(expr string) (msgFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return msgFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("channel", cel.StringType),
		cel.Variable("text", cel.StringType),
		// Parsed JSON payload (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
		cel.Variable("size", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return msgFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return msgFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return msgFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return msgFilter{}, err
	}
	return msgFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a message. When disabled,
// returns true. Evaluation errors fail closed.
func (f msgFilter) Eval(in FilterInput) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal([]byte(in.Text), &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"channel": in.Channel,
		"text":    in.Text,
		"json":    jsonObj,
		"size":    int64(len(in.Text)),
		"ts_ms":   in.TsMs,
		"now_ms":  time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
