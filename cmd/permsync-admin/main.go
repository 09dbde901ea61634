// Command permsync-admin is an operator CLI for the permsync HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

var (
	app       = kingpin.New("permsync-admin", "Operator CLI for the permsync bulk user-permission service")
	serverURL = app.Flag("server", "Base URL of the permsync server").Default("http://localhost:3200").Envar("PERMSYNC_SERVER_URL").String()
	apiKey    = app.Flag("api-key", "API key for the server").Envar("PERMSYNC_API_KEY").Required().String()

	// Mapping commands
	mappingCmd = app.Command("mapping", "Permission mapping commands")

	mappingListCmd = mappingCmd.Command("list", "List all permission mappings")

	mappingShowCmd = mappingCmd.Command("show", "Show one permission mapping")
	mappingShowID  = mappingShowCmd.Arg("id", "Mapping ID").Required().String()

	mappingApplyCmd = mappingCmd.Command("apply", "Re-apply a mapping's grants on demand")
	mappingApplyID  = mappingApplyCmd.Arg("id", "Mapping ID").Required().String()

	mappingDeleteCmd = mappingCmd.Command("delete", "Delete a mapping and retract its grants")
	mappingDeleteID  = mappingDeleteCmd.Arg("id", "Mapping ID").Required().String()

	// Grant commands
	grantListCmd  = app.Command("grants", "List applied grants for a user")
	grantListUser = grantListCmd.Arg("user", "User name").Required().String()

	// Directory commands
	userSearchCmd   = app.Command("search", "Search directory users by name")
	userSearchText  = userSearchCmd.Arg("text", "Substring to match").String()
	userSearchRoles = userSearchCmd.Flag("role", "Restrict to users holding this role (repeatable)").Strings()
	userSearchStart = userSearchCmd.Flag("start", "Result offset").Default("0").Int()
	userSearchLimit = userSearchCmd.Flag("limit", "Page size").Default("10").Int()

	// Settings commands
	settingsGetCmd = app.Command("settings", "Show system settings")

	settingsSetCmd    = app.Command("set-strict", "Enable or disable strict user permissions")
	settingsSetStrict = settingsSetCmd.Arg("enabled", "true or false").Required().Bool()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	c := newClient(*serverURL, *apiKey)

	var err error
	switch command {
	case mappingListCmd.FullCommand():
		err = c.listMappings()
	case mappingShowCmd.FullCommand():
		err = c.showMapping(*mappingShowID)
	case mappingApplyCmd.FullCommand():
		err = c.applyMapping(*mappingApplyID)
	case mappingDeleteCmd.FullCommand():
		err = c.deleteMapping(*mappingDeleteID)
	case grantListCmd.FullCommand():
		err = c.listGrants(*grantListUser)
	case userSearchCmd.FullCommand():
		err = c.searchUsers(*userSearchText, *userSearchRoles, *userSearchStart, *userSearchLimit)
	case settingsGetCmd.FullCommand():
		err = c.showSettings()
	case settingsSetCmd.FullCommand():
		err = c.setStrict(*settingsSetStrict)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
