// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"center-onboarding/pkg/registry"
)

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check-args", flag.ExitOnError)

	// Add command flags
	addPath := addCmd.String("path", "pkg/registry/activities.json", "Path to registry file")
	idAdd := addCmd.String("id", "", "Activity ID (e.g., resolve-city)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Resolve City)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (e.g., geography)")
	taskType := addCmd.String("taskType", "", "Task type the worker subscribes to")
	timeout := addCmd.String("timeout", "10s", "Job timeout")

	// Update command flags
	updatePath := updateCmd.String("path", "pkg/registry/activities.json", "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, timeout, retries, etc.)")
	value := updateCmd.String("value", "", "New value for the field")

	// Validate command flags
	validatePath := validateCmd.String("path", "", "Path to registry file (embedded registry when empty)")

	// Check-args command flags
	toolName := checkCmd.String("tool", "", "Tool name")
	args := checkCmd.String("args", "{}", "Tool arguments as JSON")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *category == "" || *taskType == "" {
			fmt.Println("Error: id, displayName, description, category, and taskType are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		activity := registry.Activity{
			ID:          *idAdd,
			DisplayName: *displayName,
			Description: *description,
			Category:    *category,
			TaskType:    *taskType,
			ErrorCodes:  []string{},
			Timeout:     *timeout,
			Retries:     3,
			Tags:        []string{},
		}
		if err := addActivity(*addPath, activity); err != nil {
			fmt.Printf("Error adding activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added activity: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistries(*validatePath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "tools":
		if err := listTools(); err != nil {
			fmt.Printf("Error listing tools: %v\n", err)
			os.Exit(1)
		}

	case "check-args":
		checkCmd.Parse(os.Args[2:])
		if *toolName == "" {
			fmt.Println("Error: tool is required for check-args.")
			checkCmd.Usage()
			os.Exit(1)
		}
		ok, err := checkArgs(*toolName, *args)
		if err != nil {
			fmt.Printf("Error checking arguments: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			os.Exit(2)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addActivity(path string, activity registry.Activity) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.ActivityRegistry{Version: "1.0.0"}
	}

	if _, exists := reg.Find(activity.TaskType); exists {
		return fmt.Errorf("task type %s is already registered", activity.TaskType)
	}
	reg.Activities = append(reg.Activities, activity)

	if err := reg.Validate(); err != nil {
		return err
	}
	return saveRegistry(reg, path)
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Activities {
		if reg.Activities[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "displayName":
			reg.Activities[i].DisplayName = value
		case "description":
			reg.Activities[i].Description = value
		case "category":
			reg.Activities[i].Category = value
		case "taskType":
			reg.Activities[i].TaskType = value
		case "timeout":
			reg.Activities[i].Timeout = value
		case "retries":
			retries, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid retries value: %w", err)
			}
			reg.Activities[i].Retries = retries
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}

	if !found {
		return fmt.Errorf("activity with ID %s not found", id)
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	return saveRegistry(reg, path)
}

func validateRegistries(path string) error {
	var (
		reg *registry.ActivityRegistry
		err error
	)
	if path == "" {
		reg, err = registry.DefaultActivities()
	} else {
		reg, err = registry.LoadRegistry(path)
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	tools, err := registry.Default()
	if err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}

	fmt.Printf("Registry validation passed. Found %d activities and %d tools.\n", len(reg.Activities), len(tools.Tools()))
	return nil
}

func listTools() error {
	reg, err := registry.Default()
	if err != nil {
		return err
	}
	fmt.Printf("Tool registry %s\n", reg.Version())
	for _, tool := range reg.Tools() {
		fmt.Printf("  %-28s %s\n", tool.Name, tool.Description)
	}
	return nil
}

func checkArgs(name, args string) (bool, error) {
	reg, err := registry.Default()
	if err != nil {
		return false, err
	}
	result, err := reg.Validate(name, []byte(args))
	if err != nil {
		return false, err
	}
	if result.Valid {
		fmt.Printf("Arguments for %s are valid.\n", name)
		return true, nil
	}
	for _, e := range result.Errors {
		fmt.Printf("  %s: %s\n", e.Field, e.Message)
	}
	return false, nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add         Add a new activity to the registry
  update      Update an existing activity's field
  validate    Validate the activity and tool registries
  tools       List the tools published to the conversation model
  check-args  Validate tool arguments against the tool's schema
  help        Show this help message

Examples:
  registry-updater add -id notify-ops -displayName "Notify Ops" -description "Pages the ops rota" -category communication -taskType notify-ops
  registry-updater update -id resolve-city -field timeout -value 15s
  registry-updater validate -path pkg/registry/activities.json
  registry-updater check-args -tool save_location -args '{"city":"Madrid"}'

Use 'registry-updater <command> -h' for more information about a command.`)
}
