package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/agent"
	"github.com/dotcommander/swarmyard/internal/models"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent registration, heartbeats, and liveness",
	}
	cmd.AddCommand(newAgentRegisterCmd())
	cmd.AddCommand(newAgentHeartbeatCmd())
	cmd.AddCommand(newAgentStatusCmd())
	cmd.AddCommand(newAgentUnregisterCmd())
	return cmd
}

func withAgentRegistry(fn func(r *agent.Registry) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(agent.New(db, defaultLivenessTTL))
}

func newAgentRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this agent with the coordinator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaAgentRegister, err)
			}
			metaFlags, _ := cmd.Flags().GetStringToString("meta")

			if err := withAgentRegistry(func(r *agent.Registry) error {
				return r.Register(cmd.Context(), agentID, metaFlags)
			}); err != nil {
				return cmdErr(schemaAgentRegister, err)
			}

			type resp struct {
				AgentID string `json:"agent_id"`
			}
			return printSuccess(schemaAgentRegister, resp{AgentID: agentID})
		},
	}
	cmd.Flags().StringToString("meta", nil, "Extra metadata key=value pairs")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}

func newAgentHeartbeatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Renew this agent's liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaAgentHeartbeat, err)
			}
			command, _ := cmd.Flags().GetString("command")

			if err := withAgentRegistry(func(r *agent.Registry) error {
				return r.Heartbeat(cmd.Context(), agentID, command)
			}); err != nil {
				return cmdErr(schemaAgentHeartbeat, err)
			}

			type resp struct {
				AgentID string `json:"agent_id"`
			}
			return printSuccess(schemaAgentHeartbeat, resp{AgentID: agentID})
		},
	}
	cmd.Flags().String("command", "", "Command the agent is currently running, for status reporting")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}

func newAgentStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [agent-id]",
		Short: "Show one agent's liveness classification and registration row",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID := resolveAgentID(cmd)
			if len(args) == 1 {
				agentID = args[0]
			}
			if agentID == "" {
				return cmdErr(schemaAgentStatus, &models.ValidationError{Field: "agent_id", Value: "", Message: "must not be empty"})
			}

			var (
				a      *models.Agent
				status models.AgentStatus
			)
			if err := withAgentRegistry(func(r *agent.Registry) error {
				got, err := r.Get(cmd.Context(), agentID)
				if err != nil {
					return err
				}
				a = got
				status, err = r.Status(cmd.Context(), agentID)
				return err
			}); err != nil {
				return cmdErr(schemaAgentStatus, err)
			}

			type resp struct {
				*models.Agent
				Liveness models.AgentStatus `json:"liveness"`
			}
			return printSuccess(schemaAgentStatus, resp{Agent: a, Liveness: status})
		},
	}
	return cmd
}

func newAgentUnregisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unregister",
		Short: "Remove this agent's registration row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaAgentUnreg, err)
			}

			if err := withAgentRegistry(func(r *agent.Registry) error {
				return r.Unregister(cmd.Context(), agentID)
			}); err != nil {
				return cmdErr(schemaAgentUnreg, err)
			}

			type resp struct {
				AgentID string `json:"agent_id"`
			}
			return printSuccess(schemaAgentUnreg, resp{AgentID: agentID})
		},
	}
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}
