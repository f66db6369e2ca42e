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

package osutil_test

import (
	"os/user"
	"testing"

	"github.com/go-taskmaster/taskmaster/internal/osutil"
)

func TestLookupUserUnknown(t *testing.T) {
	restore := osutil.FakeUserLookup(func(name string) (*user.User, error) {
		return nil, user.UnknownUserError(name)
	})
	defer restore()

	_, err := osutil.LookupUser("nosuchuser")
	if _, ok := err.(user.UnknownUserError); !ok {
		t.Fatalf("expected user.UnknownUserError, got %v (%T)", err, err)
	}
}

func TestLookupUserOK(t *testing.T) {
	restore := osutil.FakeUserLookup(func(name string) (*user.User, error) {
		return &user.User{Username: name, Uid: "10", Gid: "20"}, nil
	})
	defer restore()

	u, err := osutil.LookupUser("worker")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	if u.Uid != "10" || u.Gid != "20" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestUidGid(t *testing.T) {
	cases := []struct {
		name    string
		user    *user.User
		wantErr string
	}{
		{"happy", &user.User{Uid: "10", Gid: "20"}, ""},
		{"bad uid", &user.User{Uid: "x", Gid: "20"}, "cannot parse user id"},
		{"bad gid", &user.User{Uid: "10", Gid: "x"}, "cannot parse group id"},
	}
	for _, tc := range cases {
		uid, gid, err := osutil.UidGid(tc.user)
		if tc.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", tc.name, err)
			}
			if uid != 10 || gid != 20 {
				t.Errorf("%s: got uid=%d gid=%d", tc.name, uid, gid)
			}
			continue
		}
		if err == nil {
			t.Errorf("%s: expected error containing %q, got nil", tc.name, tc.wantErr)
		}
	}
}
