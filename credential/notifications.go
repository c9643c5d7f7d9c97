/*
 * Copyright 2024-2026 FairCredit Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package credential

import (
	"encoding/json"
	"fmt"

	natsutil "github.com/kthomas/go-natsutil"

	"github.com/faircredit/registry/common"
)

const natsCredentialNotificationSubjectPrefix = "registry.credential"

const natsCredentialCreatedEvent = "created"
const natsCredentialEndorsedEvent = "endorsed"
const natsCredentialApprovedEvent = "approved"
const natsCredentialMintedEvent = "minted"
const natsCredentialVerifiedEvent = "verified"

// dispatchNotification emits a credential lifecycle event; notifications are
// best-effort and dispatched only after the instruction has committed
func (cred *Credential) dispatchNotification(event string, params map[string]interface{}) {
	if params == nil {
		params = map[string]interface{}{}
	}
	params["address"] = cred.Address
	params["course"] = cred.Course
	params["student"] = cred.Student
	params["status"] = cred.Status

	payload, _ := json.Marshal(params)
	subject := fmt.Sprintf("%s.%s", natsCredentialNotificationSubjectPrefix, event)

	_, err := natsutil.NatsJetstreamPublish(subject, payload)
	if err != nil {
		common.Log.Warningf("failed to dispatch %s notification for credential: %s; %s", event, *cred.Address, err.Error())
		return
	}

	common.Log.Debugf("dispatched %s notification for credential: %s", event, *cred.Address)
}
