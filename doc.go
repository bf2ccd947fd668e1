// Package seiter is an iterative agent orchestration engine.
//
// Given a batch of software-engineering problem instances and a strategy
// plan of N iterations, it drives an external agent runner once per
// iteration, compresses and accumulates per-instance trajectories and
// predictions into a trajectory pool across iterations, and runs operators
// between iterations that consume the pool to synthesize per-instance
// guidance for the next iteration.
//
// # Quick Start
//
// A Scheduler is built from an SEConfig and a workspace root, then run:
//
//	sched := seiter.NewScheduler(cfg, workspaceRoot, seiter.WithRunnerConfig(rc))
//	if err := sched.Run(ctx, resume, cleanRestart); err != nil {
//		log.Fatal(err)
//	}
//
// # Core components
//
//   - [LLMClient] — one-shot chat completion with construction-time
//     validation and no internal retry
//   - [Compressor] — shrinks raw `.traj` trajectories into compressed `.tra`
//     files plus token/entry statistics
//   - [InstanceDataManager] — resolves problem/trajectory/patch files for an
//     instance directory
//   - [Pool] — the append-only, whole-file trajectory pool (`traj.pool`)
//   - [Operator] — pluggable per-instance guidance generator (Template or
//     Enhance family), discovered from a registry by name
//   - [Scheduler] — drives the sequential N-iteration loop: operator call,
//     agent runner subprocess, compression, pool update
//   - [Workspace] — the on-disk layout contract for a scheduler run
//
// See cmd/seiter for the CLI driver.
package seiter
