package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Platform deployment status strings as reported by the Railway API.
const (
	platformStatusSuccess      = "SUCCESS"
	platformStatusFailed       = "FAILED"
	platformStatusCrashed      = "CRASHED"
	platformStatusRemoved      = "REMOVED"
	platformStatusBuilding     = "BUILDING"
	platformStatusDeploying    = "DEPLOYING"
	platformStatusQueued       = "QUEUED"
	platformStatusInitializing = "INITIALIZING"
)

// ServiceState is the platform's view of one service's latest deployment.
type ServiceState struct {
	Name         string
	DeployStatus string
}

// Ready reports whether the latest deployment is live.
func (s *ServiceState) Ready() bool {
	return s.DeployStatus == platformStatusSuccess
}

// FailedTerminally reports whether the latest deployment reached a state it
// cannot recover from; polling further is pointless.
func (s *ServiceState) FailedTerminally() bool {
	switch s.DeployStatus {
	case platformStatusFailed, platformStatusCrashed, platformStatusRemoved:
		return true
	default:
		return false
	}
}

// railwayProjectStatus mirrors the JSON shape of `railway status --json`.
type railwayProjectStatus struct {
	Name     string `json:"name"`
	Services struct {
		Edges []struct {
			Node struct {
				Name             string `json:"name"`
				ServiceInstances struct {
					Edges []struct {
						Node struct {
							LatestDeployment struct {
								Status string `json:"status"`
							} `json:"latestDeployment"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"serviceInstances"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"services"`
}

// RailwayClient drives the Railway platform through its CLI. Every method is
// a single CLI invocation with no retries; bounded retry policy lives in the
// callers. The auth token travels in the child process environment, never on
// the command line.
type RailwayClient struct {
	config *Config
}

// Ensure RailwayClient implements PlatformClient
var _ PlatformClient = (*RailwayClient)(nil)

func NewRailwayClient(config *Config) *RailwayClient {
	return &RailwayClient{config: config}
}

// Authenticate verifies the configured token and returns the account it
// belongs to.
func (c *RailwayClient) Authenticate(ctx context.Context) (string, error) {
	cmd := c.prepareCommand(ctx, "", "whoami")
	out, err := c.executeCommand(cmd)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "platform_cli",
			"operation", "railway_whoami",
			"error", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// LinkProject binds the working directory to a platform project and
// environment. All subsequent service commands operate within that scope.
func (c *RailwayClient) LinkProject(ctx context.Context, projectID string, environment string) error {
	cmd := c.prepareCommand(ctx, "", "link", "--project", projectID, "--environment", environment)
	if _, err := c.executeCommand(cmd); err != nil {
		slog.Error("Service operation failed",
			"layer", "platform_cli",
			"operation", "railway_link",
			"project_id", projectID,
			"environment", environment,
			"error", err)
		return err
	}
	slog.Debug("Linked platform project", "project_id", projectID, "environment", environment)
	return nil
}

// ServiceExists reports whether a service with the given name exists in the
// linked project.
func (c *RailwayClient) ServiceExists(ctx context.Context, serviceName string) (bool, error) {
	status, err := c.projectStatus(ctx)
	if err != nil {
		return false, err
	}
	for _, edge := range status.Services.Edges {
		if edge.Node.Name == serviceName {
			return true, nil
		}
	}
	return false, nil
}

// CreateService creates an empty service. Creating a service that already
// exists is success: the platform's "already exists" complaint is swallowed
// so ensure-service flows stay idempotent.
func (c *RailwayClient) CreateService(ctx context.Context, serviceName string) error {
	cmd := c.prepareCommand(ctx, "", "add", "--service", serviceName)
	if _, err := c.executeCommand(cmd); err != nil {
		var platformErr *PlatformCommandError
		if errors.As(err, &platformErr) && strings.Contains(strings.ToLower(platformErr.Stderr), "already exists") {
			slog.Debug("Service already exists", "service", serviceName)
			return nil
		}
		slog.Error("Service operation failed",
			"layer", "platform_cli",
			"operation", "railway_add",
			"service", serviceName,
			"error", err)
		return err
	}
	slog.Info("Created service", "service", serviceName)
	return nil
}

// SetVariables sets the full variable set for a service in one invocation,
// in declaration order. Deploys triggered by variable changes are skipped;
// the rollout triggers its own deploy afterwards.
func (c *RailwayClient) SetVariables(ctx context.Context, serviceName string, vars *VariableSet) error {
	args := []string{"variables", "--service", serviceName, "--skip-deploys"}
	for _, pair := range vars.Args() {
		args = append(args, "--set", pair)
	}

	cmd := c.prepareCommand(ctx, "", args...)
	if _, err := c.executeCommand(cmd); err != nil {
		slog.Error("Service operation failed",
			"layer", "platform_cli",
			"operation", "railway_variables_set",
			"service", serviceName,
			"var_count", vars.Len(),
			"error", err)
		return err
	}
	slog.Debug("Set service variables", "service", serviceName, "var_count", vars.Len())
	return nil
}

// Variables returns the current variable values of a service, including the
// ones the platform provisions itself (DATABASE_URL and friends).
func (c *RailwayClient) Variables(ctx context.Context, serviceName string) (map[string]string, error) {
	cmd := c.prepareCommand(ctx, "", "variables", "--service", serviceName, "--json")
	out, err := c.executeCommand(cmd)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "platform_cli",
			"operation", "railway_variables",
			"service", serviceName,
			"error", err)
		return nil, err
	}

	vars := map[string]string{}
	if err := json.Unmarshal([]byte(out), &vars); err != nil {
		return nil, fmt.Errorf("parsing service variables: %w", err)
	}
	return vars, nil
}

// Deploy uploads sourceDir and triggers a deployment, returning once the
// platform has accepted it. Build and deploy progress is observed via Status
// polling, not here.
func (c *RailwayClient) Deploy(ctx context.Context, serviceName, sourceDir string) error {
	cmd := c.prepareCommand(ctx, sourceDir, "up", "--service", serviceName, "--detach")
	if err := c.executeCommandStreaming(cmd); err != nil {
		slog.Error("Service operation failed",
			"layer", "platform_cli",
			"operation", "railway_up",
			"service", serviceName,
			"source_dir", sourceDir,
			"error", err)
		return err
	}
	slog.Info("Deployment accepted", "service", serviceName, "source_dir", sourceDir)
	return nil
}

// Status returns the platform's view of a service's latest deployment.
func (c *RailwayClient) Status(ctx context.Context, serviceName string) (*ServiceState, error) {
	status, err := c.projectStatus(ctx)
	if err != nil {
		return nil, err
	}

	for _, edge := range status.Services.Edges {
		if edge.Node.Name != serviceName {
			continue
		}
		state := &ServiceState{Name: serviceName}
		if instances := edge.Node.ServiceInstances.Edges; len(instances) > 0 {
			state.DeployStatus = instances[0].Node.LatestDeployment.Status
		}
		return state, nil
	}
	return nil, fmt.Errorf("service %s not found in project %s", serviceName, status.Name)
}

// Domain returns the public https URL of a service, generating a domain if
// the service does not have one yet.
func (c *RailwayClient) Domain(ctx context.Context, serviceName string) (string, error) {
	cmd := c.prepareCommand(ctx, "", "domain", "--service", serviceName, "--json")
	out, err := c.executeCommand(cmd)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "platform_cli",
			"operation", "railway_domain",
			"service", serviceName,
			"error", err)
		return "", err
	}

	var payload struct {
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return "", fmt.Errorf("parsing domain output: %w", err)
	}
	if payload.Domain == "" {
		return "", fmt.Errorf("no domain returned for service %s", serviceName)
	}
	return "https://" + payload.Domain, nil
}

func (c *RailwayClient) projectStatus(ctx context.Context) (*railwayProjectStatus, error) {
	cmd := c.prepareCommand(ctx, "", "status", "--json")
	out, err := c.executeCommand(cmd)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "platform_cli",
			"operation", "railway_status",
			"error", err)
		return nil, err
	}

	var status railwayProjectStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		return nil, fmt.Errorf("parsing project status: %w", err)
	}
	return &status, nil
}

// prepareCommand builds the CLI invocation. workDir is the working directory
// for commands that upload from one; empty means the current directory.
func (c *RailwayClient) prepareCommand(ctx context.Context, workDir string, args ...string) *exec.Cmd {
	slog.Debug("Executing Railway command",
		"command", c.config.RailwayCommand,
		"args", args,
		"working_dir", workDir)

	cmd := exec.CommandContext(ctx, c.config.RailwayCommand, args...)
	cmd.Dir = workDir

	// Token goes through the environment so it never shows up in process
	// listings or recorded command lines. NO_COLOR keeps output parseable.
	env := append(os.Environ(), "NO_COLOR=1", "CI=true")
	if c.config.RailwayToken != "" {
		env = append(env, "RAILWAY_TOKEN="+c.config.RailwayToken)
	}
	cmd.Env = env

	return cmd
}

func (c *RailwayClient) executeCommand(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", c.classifyError(cmd, err, stderr.String())
	}
	return stdout.String(), nil
}

// executeCommandStreaming runs the command with stdout and stderr drained
// line by line into the debug log, for long uploads whose progress is worth
// surfacing. The stderr tail is kept for error reporting.
func (c *RailwayClient) executeCommandStreaming(cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attaching stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attaching stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return c.classifyError(cmd, err, "")
	}

	var wg sync.WaitGroup
	var tail stderrTail

	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			slog.Debug("railway", "stream", "stdout", "line", scanner.Text())
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			slog.Debug("railway", "stream", "stderr", "line", line)
		}
	}()

	cmdErr := cmd.Wait()

	// All output must be drained before the error is inspected, so the
	// stderr tail is complete even when the command failed.
	wg.Wait()

	if cmdErr != nil {
		return c.classifyError(cmd, cmdErr, tail.String())
	}
	return nil
}

func (c *RailwayClient) classifyError(cmd *exec.Cmd, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &PlatformCommandError{
			Command:  strings.Join(cmd.Args, " "),
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr,
		}
	}
	return fmt.Errorf("running %s: %w", c.config.RailwayCommand, err)
}

// stderrTail keeps the last lines of a stream for error messages.
type stderrTail struct {
	lines []string
}

const stderrTailLines = 20

func (t *stderrTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > stderrTailLines {
		t.lines = t.lines[1:]
	}
}

func (t *stderrTail) String() string {
	return strings.Join(t.lines, "\n")
}

// EnsureService makes sure a service exists, creating it when missing. The
// existence check keeps the common re-deploy path quiet; CreateService is
// itself idempotent as a second line of defense.
func EnsureService(ctx context.Context, client PlatformClient, serviceName string) error {
	exists, err := client.ServiceExists(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("checking service %s: %w", serviceName, err)
	}
	if exists {
		slog.Debug("Service already exists", "service", serviceName)
		return nil
	}
	if err := client.CreateService(ctx, serviceName); err != nil {
		return fmt.Errorf("creating service %s: %w", serviceName, err)
	}
	return nil
}

// ConnectionURLFromVariables picks the database connection string from a
// service's platform variables. The private URL is preferred for app-to-app
// wiring; the public one is the fallback for services without private
// networking.
func ConnectionURLFromVariables(vars map[string]string) string {
	if v := vars["DATABASE_URL"]; v != "" {
		return v
	}
	return vars["DATABASE_PUBLIC_URL"]
}

// PublicConnectionURLFromVariables picks the connection string reachable from
// outside the platform network, used for schema initialization.
func PublicConnectionURLFromVariables(vars map[string]string) string {
	if v := vars["DATABASE_PUBLIC_URL"]; v != "" {
		return v
	}
	return vars["DATABASE_URL"]
}
