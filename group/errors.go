/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package group

import "errors"

var (
	ErrGroupDoesNotExist               = errors.New("group does not exist")
	ErrGroupAlreadyExists              = errors.New("group already exists")
	ErrCallerIsNotTheGroupAdmin        = errors.New("caller is not the group admin")
	ErrCallerIsNotThePendingGroupAdmin = errors.New("caller is not the pending group admin")
	ErrWrongSiblingNodes               = errors.New("wrong sibling nodes")
	ErrLeafCannotBeZero                = errors.New("leaf cannot be zero")
	ErrLeafAlreadyExists               = errors.New("leaf already exists")
	ErrLeafDoesNotExist                = errors.New("leaf does not exist")
	ErrLeafNotHexText                  = errors.New("leaf is not hex text")
	ErrNoMembers                       = errors.New("no members given")
	ErrInvalidAdmin                    = errors.New("admin cannot be empty")
)
