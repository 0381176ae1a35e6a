// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webserver

import (
	"context"

	"github.com/united-manufacturing-hub/site-manager/pkg/managed"
)

func (w *Webserver) generateConfig(ctx context.Context) {
	err := w.group.GenerateConfig(ctx, func(b *managed.Builder) {
		b.SetHeartbeat(w.cfg.HeartbeatMs)
		b.SetDefaultRoute("")

		start := w.child.Start()
		start.Heartbeat = true
		start.Config = &serverConfig
		start.Routes = serverRoutes

		b.AddStart(start)
	})
	if err != nil {
		w.logger.Errorf("Failed to generate specification: %v", err)
	}
}

func arg(value string) managed.Node {
	return managed.NewNode("arg", "value", value)
}

func dir(name string, children ...managed.Node) managed.Node {
	return managed.NewNode("dir", "name", name).With(children...)
}

func symlink(name, target string) managed.Node {
	return managed.NewNode("symlink", "name", name, "target", target)
}

func rom(name string) managed.Node {
	return managed.NewNode("rom", "name", name, "binary", "no")
}

// serverConfig starts lighttpd in the foreground with its configuration,
// certificates and web site mounted from the parent.
var serverConfig = managed.NewNode("config", "ld_verbose", "yes").With(
	arg("lighttpd"),
	arg("-f"),
	arg("/etc/lighttpd/lighttpd.conf"),
	arg("-D"),
	managed.NewNode("vfs").With(
		dir("dev",
			managed.NewNode("log"),
			managed.NewNode("null"),
			managed.NewNode("rtc"),
			managed.NewNode("jitterentropy", "name", "random"),
		),
		dir("socket",
			managed.NewNode("lxip", "dhcp", "yes"),
		),
		dir("etc",
			dir("lighttpd",
				rom("lighttpd.conf"),
				rom("upload-user.conf"),
				managed.NewNode("fs", "label", "cert"),
			),
		),
		dir("website",
			dir(".well-known",
				symlink("acme-challenge", "/upload/acme-challenge"),
			),
			symlink("upload", "/upload"),
			managed.NewNode("fs", "label", "website"),
		),
		dir("upload",
			symlink("cert", "/etc/lighttpd/public"),
			dir("acme-challenge", managed.NewNode("ram")),
		),
	),
	managed.NewNode("libc",
		"stdin", "/dev/null",
		"stdout", "/dev/log",
		"stderr", "/dev/log",
		"rtc", "/dev/rtc",
		"socket", "/socket",
	),
)

var serverRoutes = []managed.Route{
	managed.ParentRoute("File_system", "cert", "cert"),
	managed.ParentRoute("File_system", "website", "website"),
	managed.ParentRoute("Nic", "", ""),
	managed.ParentRoute("CPU", "", ""),
	managed.ParentRoute("LOG", "", ""),
	managed.ParentRoute("PD", "", ""),
	managed.ParentRoute("ROM", "", ""),
	managed.ParentRoute("Rtc", "", ""),
	managed.ParentRoute("Timer", "", ""),
}
