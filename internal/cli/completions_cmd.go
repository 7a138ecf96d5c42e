package cli

import (
	"flag"

	"github.com/ryancswallace/jobman/internal/completions"
	"github.com/ryancswallace/jobman/internal/jobmanerr"
)

func runInstallCompletions(disp *display, args []string) int {
	fs := flag.NewFlagSet("install-completions", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse install-completions flags"))
		return jobmanerr.Usage.ExitCode()
	}

	var shellArg string
	if rest := fs.Args(); len(rest) > 0 {
		shellArg = rest[0]
	}

	installed, shellName, err := completions.Install(shellArg)
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}
	if installed {
		disp.Line("Installed completions for %s shell", shellName)
	} else {
		disp.Line("Completions already installed for %s shell", shellName)
	}
	return jobmanerr.OK.ExitCode()
}
