// Copyright (c) 2014-2020 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package osutil

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
	"syscall"
)

var (
	userLookup = user.Lookup

	enoentMessage = syscall.ENOENT.Error()
)

// LookupUser resolves username to a *user.User, normalizing the "unknown
// user" error so callers can detect it with user.UnknownUserError regardless
// of platform-specific wording (see https://github.com/golang/go/issues/67912).
func LookupUser(username string) (*user.User, error) {
	u, err := userLookup(username)
	if err != nil {
		if strings.Contains(err.Error(), enoentMessage) {
			return nil, user.UnknownUserError(username)
		}
		return nil, err
	}
	return u, nil
}

// UidGid returns the uid and gid of the given user, as uint32s suitable for
// syscall.Credential.
func UidGid(u *user.User) (uid, gid uint32, err error) {
	n, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot parse user id %q: %w", u.Uid, err)
	}
	g, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot parse group id %q: %w", u.Gid, err)
	}
	return uint32(n), uint32(g), nil
}
