package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from a .pipeline.kdl file in
// projectRoot, mirroring the teacher's LoadKDL (.lci.kdl) lookup.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".pipeline.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .pipeline.kdl: %w", err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.Project.Root != "" {
		var absRoot string
		if filepath.IsAbs(cfg.Project.Root) {
			absRoot = cfg.Project.Root
		} else {
			absRoot = filepath.Join(projectRoot, cfg.Project.Root)
		}
		cfg.Project.Root = filepath.Clean(absRoot)
	} else if cfg != nil {
		if absRoot, err := filepath.Abs(projectRoot); err == nil {
			cfg.Project.Root = absRoot
		} else {
			cfg.Project.Root = projectRoot
		}
	}

	return cfg, nil
}

// parseKDL walks a parsed .pipeline.kdl document into a Config,
// grounded on the teacher's parseKDL (per-section node switch,
// firstIntArg/firstStringArg/firstFloatArg accessors).
func parseKDL(content string) (*Config, error) {
	defaultRoot, _ := os.Getwd()
	if defaultRoot == "" {
		defaultRoot = "."
	}
	cfg := DefaultConfig(defaultRoot)
	cfg.Include = []string{}
	cfg.Exclude = []string{}

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "queue":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "partitions":
					if v, ok := firstIntArg(cn); ok {
						cfg.Queue.Partitions = v
					}
				case "strategy":
					if s, ok := firstStringArg(cn); ok {
						cfg.Queue.Strategy = s
					}
				case "partition_capacity":
					if v, ok := firstIntArg(cn); ok {
						cfg.Queue.PartitionCapacity = v
					}
				case "backpressure_depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Queue.BackpressureDepth = v
					}
				case "backoff_base_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Queue.BackoffBaseMs = v
					}
				case "backoff_max_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Queue.BackoffMaxMs = v
					}
				case "jitter_fraction":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Queue.JitterFraction = v
					}
				case "sweep_interval_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Queue.SweepIntervalSec = v
					}
				}
			}
		case "worker":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "min_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Worker.MinWorkers = v
					}
				case "max_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Worker.MaxWorkers = v
					}
				case "scale_up_queue_depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Worker.ScaleUpQueueDepth = v
					}
				case "scale_down_idle_for_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Worker.ScaleDownIdleForSec = v
					}
				case "scale_cooldown_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Worker.ScaleCooldownSec = v
					}
				case "max_consecutive_errors":
					if v, ok := firstIntArg(cn); ok {
						cfg.Worker.MaxConsecutiveErrors = v
					}
				case "poll_interval_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Worker.PollIntervalMs = v
					}
				}
			}
		case "writer":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "entity_batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.EntityBatchSize = v
					}
				case "entity_batch_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.EntityBatchTimeoutMs = v
					}
				case "relationship_batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.RelationshipBatchSize = v
					}
				case "relationship_batch_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.RelationshipBatchTimeoutMs = v
					}
				case "embedding_batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.EmbeddingBatchSize = v
					}
				case "max_in_flight":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.MaxInFlight = v
					}
				case "idempotency_ttl_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.IdempotencyTTLSec = v
					}
				case "max_attempts":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.MaxAttempts = v
					}
				case "individual_retry_threshold":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.IndividualRetryThreshold = v
					}
				case "epoch_ttl_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Writer.EpochTTLSec = v
					}
				}
			}
		case "pipeline":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "resolve_budget_cap":
					if v, ok := firstIntArg(cn); ok {
						cfg.Pipeline.ResolveBudgetCap = v
					}
				case "task_timeout_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Pipeline.TaskTimeoutSec = v
					}
				case "stop_grace_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Pipeline.StopGraceSec = v
					}
				}
			}
		case "fanout":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "listen":
					if s, ok := firstStringArg(cn); ok {
						cfg.Fanout.Listen = s
					}
				case "jwt_secret":
					if s, ok := firstStringArg(cn); ok {
						cfg.Fanout.JWTSecret = s
					}
				case "heartbeat_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Fanout.HeartbeatSec = v
					}
				}
			}
		case "admin":
			for _, cn := range n.Children {
				assignSimpleString(cn, "socket_path", func(v string) { cfg.Admin.SocketPath = v })
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// Helper functions leveraging kdl-go document model (unchanged from
// the teacher's generic node-walking accessors; they carry no
// domain-specific assumptions).
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid float value for '%s' in KDL config, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
