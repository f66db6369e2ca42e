// Copyright (c) 2021 Canonical Ltd
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

package config

import "os"

// skeleton is a heavily commented example configuration, one service
// plus a commented-out email block.
const skeleton = `# taskmaster configuration file.
#
# "services" is required; "email" is optional and, if present, enables
# notifications for service start/stop/exit.

services:
  - name: sleep-example
    cmd: "sleep 30"
    numprocs: 1
    # umask: 22            # decimal digits read as octal, e.g. 22 means 022
    # workingdir: /tmp
    autostart: true
    autorestart: unexpected  # always | never | unexpected
    exitcodes: [0]
    startretries: 3
    starttime: 1
    stopsignal: TERM         # TERM | HUP | INT | QUIT | KILL | USR1 | USR2
    stoptime: 10
    # stdout: /var/log/taskmaster/sleep-example.stdout.log
    # stderr: /var/log/taskmaster/sleep-example.stderr.log
    # user: nobody
    # env:
    #   KEY: value

# email:
#   smtp_server: smtp.example.com
#   smtp_port: 587
#   smtp_email: taskmaster@example.com
#   smtp_password: secret
#   to:
#     - operator@example.com
`

// WriteSkeleton writes a commented example configuration to path.
func WriteSkeleton(path string) error {
	return os.WriteFile(path, []byte(skeleton), 0o644)
}
