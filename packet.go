// Copyright (c) 2022 The rcproxy Authors
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

package corenet

import "github.com/rcproxy/corenet/pkg/sendqueue"

// Packet is an outbound byte payload with a mutable sent-bytes cursor.
// It lives in pkg/sendqueue because the queue owns its waiting-list
// mechanics; Connection and collaborators only ever see it through this
// alias.
type Packet = sendqueue.Packet

// NewPacket wraps payload for a call to Connection.BeginSend.
var NewPacket = sendqueue.NewPacket
