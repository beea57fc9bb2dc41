package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"codesquad/internal/tools"
	"codesquad/internal/tools/core"
	"codesquad/internal/tools/git"
	"codesquad/internal/tools/shell"
)

// toolsCmd inspects the tool registry
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools with risk and approval requirements",
	RunE:  listTools,
}

var toolsDescribeCmd = &cobra.Command{
	Use:   "describe [name]",
	Short: "Show one tool's schema and policy flags",
	Args:  cobra.ExactArgs(1),
	RunE:  describeTool,
}

func init() {
	toolsCmd.AddCommand(toolsDescribeCmd)
}

func buildRegistry() (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if err := core.RegisterAll(registry); err != nil {
		return nil, err
	}
	if err := shell.RegisterAll(registry); err != nil {
		return nil, err
	}
	if err := git.RegisterAll(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func listTools(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	for _, category := range []tools.Category{tools.CategoryFile, tools.CategorySearch, tools.CategoryShell, tools.CategoryGit} {
		listed := registry.ListByCategory(category)
		if len(listed) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s:\n", category)
		for _, tool := range listed {
			flags := []string{string(tool.RiskLevel)}
			if tool.RequiresApproval {
				flags = append(flags, "approval")
			}
			if tool.Mutating {
				flags = append(flags, "mutating")
			}
			if tool.AllowedInSandbox {
				flags = append(flags, "sandbox-safe")
			}
			fmt.Fprintf(out, "  %-14s [%s] %s\n", tool.Name, strings.Join(flags, ", "), tool.Description)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func describeTool(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	tool := registry.Get(args[0])
	if tool == nil {
		return fmt.Errorf("unknown tool: %s", args[0])
	}

	fmt.Fprintf(out, "Name:              %s\n", tool.Name)
	fmt.Fprintf(out, "Category:          %s\n", tool.Category)
	fmt.Fprintf(out, "Description:       %s\n", tool.Description)
	fmt.Fprintf(out, "Risk:              %s\n", tool.RiskLevel)
	fmt.Fprintf(out, "Requires approval: %v\n", tool.RequiresApproval)
	fmt.Fprintf(out, "Mutating:          %v\n", tool.Mutating)
	fmt.Fprintf(out, "Sandbox-safe:      %v\n", tool.AllowedInSandbox)
	if tool.TimeoutSeconds > 0 {
		fmt.Fprintf(out, "Timeout:           %ds\n", tool.TimeoutSeconds)
	} else {
		fmt.Fprintf(out, "Timeout:           default\n")
	}

	if len(tool.Schema.Properties) > 0 {
		required := make(map[string]bool, len(tool.Schema.Required))
		for _, name := range tool.Schema.Required {
			required[name] = true
		}

		names := make([]string, 0, len(tool.Schema.Properties))
		for name := range tool.Schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(out, "Arguments:")
		for _, name := range names {
			prop := tool.Schema.Properties[name]
			kind := "optional"
			if required[name] {
				kind = "required"
			}
			fmt.Fprintf(out, "  %-14s %s (%s) %s\n", name, prop.Type, kind, prop.Description)
		}
	}
	return nil
}
