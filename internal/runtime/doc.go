// Package runtime runs external build tools on the host.
//
// A [Command] describes one process: its argv, extra environment, working
// directory, and optionally a root directory to chroot into before exec.
// [Runtime.Exec] runs it and reports the exit code without treating a
// non-zero exit as an error; [Runtime.Run] does, naming the command in the
// error. In streaming mode (debug builds) process output is copied to the
// terminal as well as captured.
//
// Example usage:
//
//	rt := runtime.New(internal.IsDebug())
//
//	err := rt.Run(ctx, "provision", runtime.Command{
//	    Args: []string{"ansible-playbook", "-i", inventory, "site.yml"},
//	})
//	if err != nil {
//	    return err
//	}
//
//	result, err := rt.Exec(ctx, runtime.Chroot(rootfs, "/usr/bin/update-ca-certificates"))
//	if err != nil {
//	    return err
//	}
package runtime
