package action

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	promptPattern      = regexp.MustCompile(`(?is)^execute\s+prompt\s+"([^"]+)"(?:\s+with\s+(.*))?$`)
	userWaitPattern    = regexp.MustCompile(`(?is)^wait\s+for\s+user\b(.*)$`)
	durationPattern    = regexp.MustCompile(`(?is)^wait\s+(\d+)\s*(milliseconds?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|h)\b\s*(.*)$`)
	logPattern         = regexp.MustCompile(`(?is)^log\s+(?:(error|warning|warn|info)\s+)?"(.*)"$`)
	setPattern         = regexp.MustCompile(`(?is)^set\s+(\S+?)\s*=\s*(.*)$`)
	subWorkflowPattern = regexp.MustCompile(`(?is)^(?:run\s+workflow|delegate(?:\s+to)?)\s+"([^"]+)"(?:\s+with\s+(.*))?$`)
	abortPattern       = regexp.MustCompile(`(?is)^abort(?:\s+with\s+message)?\s+"(.*)"$`)
	argumentPattern    = regexp.MustCompile(`([^\s=]+)\s*=\s*"([^"]*)"`)
	argumentKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	variablePattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	timeoutPattern     = regexp.MustCompile(`^(\d+)\s*(ms|s|m|h)?$`)
)

// ParseActionSpec turns an action description into a spec. Descriptions that are plain prose
// yield (nil, nil); descriptions that look like an action but are malformed yield a PARSE_ERROR.
func ParseActionSpec(description string) (*ActionSpec, error) {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return nil, nil
	}
	parsers := []func(string) (*ActionSpec, error){
		parsePrompt,
		parseWait,
		parseLog,
		parseSet,
		parseSubWorkflow,
		parseAbort,
	}
	for _, parse := range parsers {
		spec, err := parse(desc)
		if err != nil || spec != nil {
			return spec, err
		}
	}
	return nil, nil
}

func parsePrompt(desc string) (*ActionSpec, error) {
	m := promptPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil, nil
	}
	args, err := parseArguments(m[2])
	if err != nil {
		return nil, err
	}
	spec := &ActionSpec{
		Type:       ACTION_TYPE_PROMPT,
		PromptName: m[1],
		Arguments:  map[string]string{},
	}
	for k, v := range args {
		switch k {
		case "result":
			spec.ResultVariable = v
		case "timeout":
			timeout, err := ParseTimeout(v)
			if err != nil {
				return nil, err
			}
			spec.Timeout = timeout
		default:
			spec.Arguments[k] = v
		}
	}
	return spec, nil
}

func parseWait(desc string) (*ActionSpec, error) {
	if m := userWaitPattern.FindStringSubmatch(desc); m != nil {
		return &ActionSpec{
			Type:        ACTION_TYPE_WAIT,
			WaitForUser: true,
			Message:     desc,
		}, nil
	}
	m := durationPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil, nil
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, NewParseError("invalid wait duration '%s'", m[1])
	}
	unit, err := durationUnit(m[2])
	if err != nil {
		return nil, err
	}
	return &ActionSpec{
		Type:     ACTION_TYPE_WAIT,
		Duration: time.Duration(amount) * unit,
		Message:  strings.Trim(strings.TrimSpace(m[3]), `"`),
	}, nil
}

func durationUnit(unit string) (time.Duration, error) {
	switch strings.ToLower(unit) {
	case "ms", "millisecond", "milliseconds":
		return time.Millisecond, nil
	case "s", "sec", "secs", "second", "seconds":
		return time.Second, nil
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute, nil
	case "h", "hour", "hours":
		return time.Hour, nil
	}
	return 0, NewParseError("unknown time unit '%s'", unit)
}

func parseLog(desc string) (*ActionSpec, error) {
	m := logPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil, nil
	}
	level := LOG_LEVEL_INFO
	switch strings.ToLower(m[1]) {
	case "error":
		level = LOG_LEVEL_ERROR
	case "warning", "warn":
		level = LOG_LEVEL_WARNING
	}
	return &ActionSpec{
		Type:    ACTION_TYPE_LOG,
		Level:   level,
		Message: m[2],
	}, nil
}

func parseSet(desc string) (*ActionSpec, error) {
	m := setPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil, nil
	}
	name := m[1]
	if !variablePattern.MatchString(name) {
		return nil, NewParseError("invalid variable name '%s'", name)
	}
	value := strings.TrimSpace(m[2])
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		value = value[1 : len(value)-1]
	}
	return &ActionSpec{
		Type:         ACTION_TYPE_SET_VARIABLE,
		VariableName: name,
		Value:        value,
	}, nil
}

func parseSubWorkflow(desc string) (*ActionSpec, error) {
	m := subWorkflowPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil, nil
	}
	args, err := parseArguments(m[2])
	if err != nil {
		return nil, err
	}
	spec := &ActionSpec{
		Type:         ACTION_TYPE_SUB_WORKFLOW,
		WorkflowName: m[1],
		Arguments:    map[string]string{},
	}
	for k, v := range args {
		switch k {
		case "result":
			spec.ResultVariable = v
		case "timeout":
			timeout, err := ParseTimeout(v)
			if err != nil {
				return nil, err
			}
			spec.Timeout = timeout
		default:
			spec.Arguments[k] = v
		}
	}
	return spec, nil
}

func parseAbort(desc string) (*ActionSpec, error) {
	m := abortPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil, nil
	}
	return &ActionSpec{
		Type:    ACTION_TYPE_ABORT,
		Message: m[1],
	}, nil
}

// parseArguments reads a sequence of key="value" pairs. Anything left over is malformed.
func parseArguments(text string) (map[string]string, error) {
	args := make(map[string]string)
	text = strings.TrimSpace(text)
	if text == "" {
		return args, nil
	}
	for _, m := range argumentPattern.FindAllStringSubmatch(text, -1) {
		if !argumentKeyPattern.MatchString(m[1]) {
			return nil, NewParseError("invalid argument key '%s'", m[1])
		}
		args[m[1]] = m[2]
	}
	rest := strings.TrimSpace(argumentPattern.ReplaceAllString(text, ""))
	rest = strings.TrimSpace(strings.ReplaceAll(rest, ",", ""))
	if rest != "" {
		return nil, NewParseError("malformed arguments near '%s'", rest)
	}
	return args, nil
}

// ParseTimeout accepts 100ms, 5s, 2m, 1h or a bare number of seconds.
func ParseTimeout(text string) (time.Duration, error) {
	m := timeoutPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, NewParseError("invalid timeout '%s'", text)
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, NewParseError("invalid timeout '%s'", text)
	}
	unit := time.Second
	switch m[2] {
	case "ms":
		unit = time.Millisecond
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	}
	return time.Duration(amount) * unit, nil
}
