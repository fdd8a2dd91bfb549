package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"fluxgate/pkg/plan"
)

func stepLabel(s plan.Step) string {
	switch s.Kind {
	case plan.StepApprove:
		return fmt.Sprintf("Approve %s %s", s.Amount, s.Asset.Symbol)
	case plan.StepSwap:
		return fmt.Sprintf("Swap %s %s for %s (min %s)", s.Amount, s.Route.From.Symbol, s.Route.To.Symbol, s.MinOut)
	case plan.StepAddLiquidity:
		return fmt.Sprintf("Add liquidity %s %s + %s %s", s.Amount, s.Route.From.Symbol, s.CounterAmount, s.Route.To.Symbol)
	case plan.StepDeposit:
		return fmt.Sprintf("Deposit %s %s to credit vault", s.Amount, s.Asset.Symbol)
	default:
		return string(s.Kind)
	}
}

func displayPlan(p *plan.Plan) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                 TRANSACTION PLAN")
	fmt.Println(strings.Repeat("=", 60))
	for i, s := range p.Steps {
		fmt.Printf("\n  %d. %s\n", i+1, stepLabel(s))
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirmPlan() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with this plan? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// runPlanWithProgress executes the plan and prints each step transition
// as the runner streams snapshots.
func runPlanWithProgress(ctx context.Context, a *app, p *plan.Plan) error {
	seen := make(map[int]plan.StepStatus, len(p.Steps))

	var final plan.Snapshot
	for snapshot := range a.orch.RunPlan(ctx, p) {
		final = snapshot
		for i, s := range snapshot.Steps {
			if seen[i] == s.Status {
				continue
			}
			seen[i] = s.Status

			switch s.Status {
			case plan.StepSubmitted:
				color.Yellow("  → %s", stepLabel(s))
				fmt.Printf("    tx: %s\n", color.CyanString(s.TxHash.Hex()))
			case plan.StepConfirmed:
				color.Green("  ✓ %s", stepLabel(s))
			case plan.StepFailed:
				color.Red("  ✗ %s", stepLabel(s))
				if s.Error != "" {
					fmt.Printf("    %s\n", s.Error)
				}
			case plan.StepCancelled:
				fmt.Printf("  - %s (cancelled)\n", stepLabel(s))
			}
		}
	}

	if final.Status == plan.StatusCompleted {
		printSuccess("Plan completed. All steps confirmed on-chain.")
		return nil
	}

	// Earlier confirmed steps are settled reality; show exactly what
	// completed and what failed so the user can take corrective action.
	fmt.Println()
	color.Red("Plan failed. Completed vs failed steps:")
	for i, s := range final.Steps {
		fmt.Printf("  %d. [%s] %s\n", i+1, s.Status, stepLabel(s))
	}
	return fmt.Errorf("plan %s failed", final.PlanID)
}
