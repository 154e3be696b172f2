package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mhdraihanr/loyalinn-pms/internal/auth"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

var (
	tenantName  string
	tenantOwner string
	memberRole  string
	pmsType     string
	pmsEndpoint string
	pmsAPIKey   string
	pmsInactive bool
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants, members and PMS settings",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a tenant and its owner membership",
	Args:  cobra.NoArgs,
	RunE:  runTenantCreate,
}

var tenantAddMemberCmd = &cobra.Command{
	Use:   "add-member <tenant-id> <user-id>",
	Short: "Link a user to a tenant with a role",
	Args:  cobra.ExactArgs(2),
	RunE:  runTenantAddMember,
}

var tenantPMSCmd = &cobra.Command{
	Use:   "pms <tenant-id>",
	Short: "Save a tenant's PMS configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runTenantPMS,
}

func init() {
	tenantCreateCmd.Flags().StringVar(&tenantName, "name", "", "hotel name")
	tenantCreateCmd.Flags().StringVar(&tenantOwner, "owner", "", "user id of the owner")
	_ = tenantCreateCmd.MarkFlagRequired("name")
	_ = tenantCreateCmd.MarkFlagRequired("owner")

	tenantAddMemberCmd.Flags().StringVar(&memberRole, "role", string(auth.RoleAgent), "owner, admin or agent")

	tenantPMSCmd.Flags().StringVar(&pmsType, "type", "", "PMS provider, e.g. qloapps or custom")
	tenantPMSCmd.Flags().StringVar(&pmsEndpoint, "endpoint", "", "PMS base URL")
	tenantPMSCmd.Flags().StringVar(&pmsAPIKey, "api-key", "", "PMS API key")
	tenantPMSCmd.Flags().BoolVar(&pmsInactive, "inactive", false, "save the configuration disabled")
	_ = tenantPMSCmd.MarkFlagRequired("type")

	tenantCmd.AddCommand(tenantCreateCmd, tenantAddMemberCmd, tenantPMSCmd)
	rootCmd.AddCommand(tenantCmd)
}

func runTenantCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.TrimSpace(tenantName)
	if name == "" {
		return errors.New("--name must not be blank")
	}
	t, err := a.store.CreateTenant(ctx, name)
	if err != nil {
		return err
	}
	if err := a.store.AddMember(ctx, store.Member{TenantID: t.ID, UserID: tenantOwner, Role: string(auth.RoleOwner)}); err != nil {
		return fmt.Errorf("adding owner: %w", err)
	}
	cmd.Printf("Tenant %q created: %s\n", t.Name, t.ID)
	return nil
}

func runTenantAddMember(cmd *cobra.Command, args []string) error {
	role := auth.Role(strings.ToLower(memberRole))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", memberRole)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.AddMember(ctx, store.Member{TenantID: args[0], UserID: args[1], Role: string(role)}); err != nil {
		return err
	}
	cmd.Printf("User %s is now %s of tenant %s\n", args[1], role, args[0])
	return nil
}

func runTenantPMS(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	provider := strings.ToLower(strings.TrimSpace(pmsType))
	if !slices.Contains(a.registry().Providers(), provider) {
		a.logger.Warn("no adapter registered for provider, the mock adapter will be used", "pms_type", provider)
	}

	c := &store.PMSConfig{
		TenantID: args[0],
		PMSType:  provider,
		Endpoint: strings.TrimSpace(pmsEndpoint),
		IsActive: !pmsInactive,
	}
	if pmsAPIKey != "" {
		c.Credentials = map[string]string{"api_key": pmsAPIKey}
	}
	if err := a.store.SavePMSConfig(ctx, c); err != nil {
		return err
	}
	state := "active"
	if !c.IsActive {
		state = "inactive"
	}
	cmd.Printf("PMS configuration saved for tenant %s (%s, %s)\n", c.TenantID, c.PMSType, state)
	return nil
}
