package config

import (
	"fmt"
	"time"

	"sift/internal/judge"
	"sift/internal/notify"
	"sift/internal/pipeline"
	"sift/internal/ratelimit"
	"sift/internal/rules"
	"sift/internal/storage"
	logx "sift/pkg/logx"
)

// BuildRuleSet converts the config document into the engine's typed rule
// set. Malformed regex patterns are logged and kept as never-matching
// matchers (fail closed); they do not abort the load.
func (c *Config) BuildRuleSet(log logx.Logger) rules.Set {
	set := rules.Set{
		Global:         buildRules(c.Rules.Global, log),
		Sources:        make(map[string]rules.SourcePolicy, len(c.Rules.Sources)),
		UnknownSources: rules.ParseAction(c.Rules.UnknownSources, rules.ActionDrop),
	}
	for name, sc := range c.Rules.Sources {
		set.Sources[name] = rules.SourcePolicy{
			Default: rules.ParseAction(sc.Default, rules.ActionDrop),
			Rules:   buildRules(sc.Rules, log),
		}
	}
	return set
}

func buildRules(entries []RuleEntry, log logx.Logger) []rules.Rule {
	out := make([]rules.Rule, 0, len(entries))
	for _, e := range entries {
		out = append(out, buildRule(e, log))
	}
	return out
}

func buildRule(e RuleEntry, log logx.Logger) rules.Rule {
	r := rules.Rule{
		Action:   rules.ParseAction(e.Action, rules.ActionSend),
		Priority: notify.ParsePriority(e.Priority),
		Prompt:   e.Prompt,
	}

	add := func(kind rules.MatcherKind, pattern *string) {
		if pattern == nil {
			return
		}
		m, err := rules.NewMatcher(kind, *pattern)
		if err != nil {
			log.Warn("rule matcher fails closed", logx.Err(err))
		}
		r.Matchers = append(r.Matchers, m)
	}

	add(rules.SenderContains, e.SenderContains)
	add(rules.SenderNotContains, e.SenderNotContains)
	add(rules.BodyContains, e.BodyContains)
	add(rules.BodyNotContains, e.BodyNotContains)
	add(rules.Contains, e.Contains)
	add(rules.NotContains, e.NotContains)
	add(rules.SenderRegex, e.SenderRegex)
	add(rules.BodyRegex, e.BodyRegex)
	add(rules.Regex, e.Regex)
	return r
}

// BuildRateLimit maps the rate-limit tunables.
func (c *Config) BuildRateLimit() (ratelimit.Config, error) {
	cooldown, err := ParseDurationField("rate_limit.cooldown", c.RateLimit.Cooldown)
	if err != nil {
		return ratelimit.Config{}, err
	}
	window, err := ParseDurationField("rate_limit.dedup_window", c.RateLimit.DedupWindow)
	if err != nil {
		return ratelimit.Config{}, err
	}

	cfg := ratelimit.Config{
		MaxPerHour:        c.RateLimit.MaxPerHour,
		Cooldown:          cooldown,
		DedupWindow:       window,
		ExemptSources:     c.RateLimit.ExemptSources,
		NoCooldownSources: c.RateLimit.NoCooldownSources,
	}
	if len(c.RateLimit.SourceDedupWindows) > 0 {
		cfg.SourceDedupWindows = make(map[string]time.Duration, len(c.RateLimit.SourceDedupWindows))
		for source, raw := range c.RateLimit.SourceDedupWindows {
			d, err := ParseDurationField(fmt.Sprintf("rate_limit.source_dedup_windows.%s", source), raw)
			if err != nil {
				return ratelimit.Config{}, err
			}
			cfg.SourceDedupWindows[source] = d
		}
	}
	return cfg, nil
}

// BuildJudgeClient maps the judgment capability client settings.
func (c *Config) BuildJudgeClient() (judge.ClientConfig, error) {
	timeout, err := ParseDurationField("judge.timeout", c.Judge.Timeout)
	if err != nil {
		return judge.ClientConfig{}, err
	}
	probe, err := ParseDurationField("judge.probe_timeout", c.Judge.ProbeTimeout)
	if err != nil {
		return judge.ClientConfig{}, err
	}
	return judge.ClientConfig{
		URL:          c.Judge.URL,
		Model:        c.Judge.Model,
		Timeout:      timeout,
		ProbeTimeout: probe,
	}, nil
}

// BuildBatcher maps the urgency batching tunables.
func (c *Config) BuildBatcher() (judge.BatcherConfig, error) {
	window, err := ParseDurationField("urgency.batch_window", c.Urgency.BatchWindow)
	if err != nil {
		return judge.BatcherConfig{}, err
	}
	return judge.BatcherConfig{Window: window, MaxBatch: c.Urgency.MaxBatch}, nil
}

// BuildPipeline maps the orchestrator tunables.
func (c *Config) BuildPipeline() pipeline.Config {
	return pipeline.Config{
		UrgencyOverride: c.Urgency.Enabled,
		UrgencySources:  c.Urgency.Sources,
	}
}

// BuildStorage maps the storage settings.
func (c *Config) BuildStorage() (storage.Config, error) {
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	retention, err := ParseDurationField("storage.retention", c.Storage.Retention)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: busy,
		Retention:   retention,
	}, nil
}
