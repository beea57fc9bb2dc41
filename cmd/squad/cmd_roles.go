package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codesquad/internal/roles"
)

// rolesCmd lists the role catalog
var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List agent roles or classify a task",
	RunE:  listRoles,
}

var rolesClassifyCmd = &cobra.Command{
	Use:   "classify [task]",
	Short: "Classify a task and recommend agent roles",
	Args:  cobra.MinimumNArgs(1),
	RunE:  classifyTask,
}

func init() {
	rolesCmd.AddCommand(rolesClassifyCmd)
}

func listRoles(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	catalog := roles.NewCatalog()

	for _, role := range catalog.Roles() {
		def, err := catalog.Create(role)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-10s %s\n", def.Role, def.Description)
		fmt.Fprintf(out, "%-10s tools: %s\n", "", strings.Join(def.AllowedTools, ", "))
		fmt.Fprintf(out, "%-10s timeout: %s, priority: %d\n\n", "", def.Timeout, def.Priority)
	}
	return nil
}

func classifyTask(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	task := strings.Join(args, " ")
	catalog := roles.NewCatalog()

	c := catalog.Classify(task)
	fmt.Fprintf(out, "Primary role:     %s\n", c.PrimaryRole)
	fmt.Fprintf(out, "Confidence:       %.2f\n", c.Confidence)
	if len(c.SupportingRoles) > 0 {
		names := make([]string, len(c.SupportingRoles))
		for i, r := range c.SupportingRoles {
			names[i] = string(r)
		}
		fmt.Fprintf(out, "Supporting roles: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(out, "Reasoning:        %s\n", c.Reasoning)

	recommended := catalog.Recommend(task, roles.MaxCombination)
	names := make([]string, len(recommended))
	for i, r := range recommended {
		names[i] = string(r)
	}
	fmt.Fprintf(out, "Recommended:      %s\n", strings.Join(names, ", "))
	return nil
}
