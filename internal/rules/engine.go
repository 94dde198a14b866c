package rules

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"example.com/sorgate/internal/sor"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// RuleStage groups rules by the part of the document they inspect.
type RuleStage string

const (
	StageStructure   RuleStage = "structure"
	StageAcquisition RuleStage = "acquisition"
	StageEvents      RuleStage = "events"
	StageBudget      RuleStage = "budget"
)

type Rule struct {
	RuleId    string         `json:"ruleId"`
	Name      string         `json:"name,omitempty"`
	Stage     RuleStage      `json:"stage"`
	Severity  Severity       `json:"severity"`
	CheckFunc string         `json:"checkFunction"`
	Refs      []string       `json:"refs,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Message   string         `json:"message,omitempty"`
}

type RulePack struct {
	RulePackId string `json:"rulePackId"`
	Version    string `json:"version"`
	Profile    string `json:"profile"`
	Rules      []Rule `json:"rules"`
}

type Diagnostic struct {
	Ts          time.Time `json:"ts"`
	File        string    `json:"file"`
	RuleId      string    `json:"ruleId"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Refs        []string  `json:"refs,omitempty"`
	EventNumber int       `json:"eventNumber,omitempty"`
	Value       string    `json:"value,omitempty"`
}

// GateResult is one row of the acceptance gate matrix: a rule together with
// its pass verdict and finding count.
type GateResult struct {
	Stage    RuleStage `json:"stage"`
	Severity Severity  `json:"severity"`
	RuleId   string    `json:"ruleId"`
	Name     string    `json:"name,omitempty"`
	Pass     bool      `json:"pass"`
	Findings int       `json:"findings"`
}

type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	GateMatrix []GateResult `json:"gateMatrix"`
	Findings   []Diagnostic `json:"findings,omitempty"`
}

// Context carries the document under evaluation. Checks call EnsureDocument
// so the same context works whether the caller already decoded the file or
// only named it.
type Context struct {
	InputFile string
	Doc       *sor.Document
}

func (ctx *Context) EnsureDocument() error {
	if ctx == nil {
		return errors.New("nil context")
	}
	if ctx.Doc != nil {
		return nil
	}
	if ctx.InputFile == "" {
		return errors.New("no input file or document")
	}
	buf, err := os.ReadFile(ctx.InputFile)
	if err != nil {
		return err
	}
	doc, err := sor.Decode(buf)
	if err != nil {
		return err
	}
	ctx.Doc = doc
	return nil
}

// CheckFunc evaluates one rule against the context. An empty slice means the
// rule passed; each returned diagnostic is one finding.
type CheckFunc func(ctx *Context, rule Rule) ([]Diagnostic, error)

type Engine struct {
	rulePack    RulePack
	registry    map[string]CheckFunc
	diagnostics []Diagnostic
	gates       []GateResult
}

func NewEngine(rp RulePack) *Engine {
	return &Engine{
		rulePack: rp,
		registry: make(map[string]CheckFunc),
	}
}

func (e *Engine) Register(name string, f CheckFunc) {
	e.registry[name] = f
}

func (e *Engine) Eval(ctx *Context) ([]Diagnostic, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	if err := ctx.EnsureDocument(); err != nil {
		return nil, err
	}
	var diags []Diagnostic
	var gates []GateResult
	for _, r := range e.rulePack.Rules {
		gate := GateResult{Stage: r.Stage, Severity: r.Severity, RuleId: r.RuleId, Name: r.Name, Pass: true}
		fn, ok := e.registry[r.CheckFunc]
		if !ok {
			gate.Pass = false
			gate.Findings = 1
			diags = append(diags, Diagnostic{
				Ts: time.Now(), File: ctx.InputFile, RuleId: r.RuleId, Severity: WARN,
				Message: fmt.Sprintf("no check function %q registered for rule", r.CheckFunc),
				Refs:    r.Refs,
			})
			gates = append(gates, gate)
			continue
		}
		findings, err := fn(ctx, r)
		if err != nil {
			findings = append(findings, Diagnostic{
				Ts: time.Now(), File: ctx.InputFile, RuleId: r.RuleId, Severity: ERROR,
				Message: "check failed: " + err.Error(), Refs: r.Refs,
			})
		}
		for i := range findings {
			if findings[i].Ts.IsZero() {
				findings[i].Ts = time.Now()
			}
			if findings[i].File == "" {
				findings[i].File = ctx.InputFile
			}
			if findings[i].RuleId == "" {
				findings[i].RuleId = r.RuleId
			}
			if findings[i].Severity == "" {
				findings[i].Severity = r.Severity
			}
			if len(findings[i].Refs) == 0 {
				findings[i].Refs = r.Refs
			}
		}
		gate.Findings = len(findings)
		gate.Pass = len(findings) == 0
		gates = append(gates, gate)
		diags = append(diags, findings...)
	}
	e.diagnostics = diags
	e.gates = gates
	return diags, nil
}

func (e *Engine) WriteDiagnosticsNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, d := range e.diagnostics {
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		w.Write(b)
		w.WriteString("\n")
	}
	return nil
}

func (e *Engine) MakeAcceptance() AcceptanceReport {
	var rep AcceptanceReport
	var errs, warns int
	for _, d := range e.diagnostics {
		switch d.Severity {
		case ERROR:
			errs++
		case WARN:
			warns++
		}
	}
	rep.Summary.Total = len(e.diagnostics)
	rep.Summary.Errors = errs
	rep.Summary.Warnings = warns
	rep.Summary.Pass = errs == 0
	rep.GateMatrix = e.gates
	rep.Findings = e.diagnostics
	return rep
}

func LoadRulePack(path string) (RulePack, error) {
	var rp RulePack
	b, err := os.ReadFile(path)
	if err != nil {
		return rp, err
	}
	err = json.Unmarshal(b, &rp)
	return rp, err
}

// floatParam reads a numeric rule parameter, tolerating the float64 that
// encoding/json produces as well as literal ints in hand-written packs.
func floatParam(rule Rule, key string, fallback float64) float64 {
	v, ok := rule.Params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return fallback
}
