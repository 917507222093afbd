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

package protocol

// NodeDetail is the information required to reach a cluster node.
type NodeDetail struct {
	NodeId   string `json:"nodeId"`
	RaftAddr string `json:"raftAddr"`
}

// ClusterInfo is the public struct that mgmthttp /info/shards returns.
type ClusterInfo struct {
	NodeId     string                `json:"nodeId"`
	LeaderId   string                `json:"leaderId"`
	LeaderAddr string                `json:"leaderAddr"`
	IsLeader   bool                  `json:"isLeader"`
	Groups     int                   `json:"groups"`
	Nodes      map[string]NodeDetail `json:"nodes"`
}

// JoinRequest is the body of mgmthttp POST /join.
type JoinRequest struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}
