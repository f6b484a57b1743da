package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	repo     identity.Repository
	profiles profile.Service
	resolver *session.Resolver
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createidentity -name NAME -email EMAIL [-admin] - create a verified account; the password is prompted")
	fmt.Println("  resetpassword -email EMAIL                      - reset an account's password")
	fmt.Println("  grantadmin -email EMAIL                         - grant the admin marker to an account")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCmd := flag.NewFlagSet("createidentity", flag.ExitOnError)
	createName := createCmd.String("name", "", "The account holder's display name.")
	createEmail := createCmd.String("email", "", "The account's email. The password will be prompted next.")
	createAdmin := createCmd.Bool("admin", false, "Also grant the admin marker.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	grantAdminCmd := flag.NewFlagSet("grantadmin", flag.ExitOnError)
	grantAdminEmail := grantAdminCmd.String("email", "", "The account's email.")

	switch args[1] {
	case "createidentity":
		if err := createCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createName == "" || *createEmail == "" {
			createCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			createCmd.Usage()
			return errHelp
		}
		return cli.createIdentity(*createName, *createEmail, pwd, *createAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	case "grantadmin":
		if err := grantAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantAdminEmail == "" {
			grantAdminCmd.Usage()
			return errHelp
		}
		return cli.grantAdmin(*grantAdminEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
