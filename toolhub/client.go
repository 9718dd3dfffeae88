package toolhub

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

// ServerConfig describes one tool server. Command starts a local stdio
// server; URL dials a remote one over streamable HTTP. Exactly one of
// the two should be set.
type ServerConfig struct {
	ID      string            `toml:"id"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	URL     string            `toml:"url"`
	Headers map[string]string `toml:"headers"`
}

// dial builds the MCP client for a server config. The returned closer
// shuts the client down and, for local servers, kills the child process
// if close hangs.
func dial(ctx context.Context, cfg ServerConfig) (*client.Client, func(context.Context), error) {
	if cfg.URL != "" {
		return dialHTTP(ctx, cfg)
	}
	if cfg.Command != "" {
		return dialStdio(cfg)
	}
	return nil, nil, fmt.Errorf("server %s has neither command nor url", cfg.ID)
}

func dialStdio(cfg ServerConfig) (*client.Client, func(context.Context), error) {
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	var capturedCmd *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		env,
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	closer := func(ctx context.Context) {
		closeCancelled := closeWithTimeout(ctx, mcpClient)
		if closeCancelled && capturedCmd != nil && capturedCmd.Process != nil {
			_ = capturedCmd.Process.Kill()
		}
	}
	return mcpClient, closer, nil
}

func dialHTTP(ctx context.Context, cfg ServerConfig) (*client.Client, func(context.Context), error) {
	var opts []transport.StreamableHTTPCOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	closer := func(ctx context.Context) {
		closeWithTimeout(ctx, mcpClient)
	}
	return mcpClient, closer, nil
}

// closeWithTimeout bounds Close at one second and reports whether it
// gave up waiting. Some servers never acknowledge the close.
func closeWithTimeout(ctx context.Context, c *client.Client) bool {
	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Close() }()

	select {
	case <-done:
		return false
	case <-closeCtx.Done():
		return true
	}
}
