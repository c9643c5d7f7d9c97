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

package provider

import (
	"encoding/json"
	"fmt"

	natsutil "github.com/kthomas/go-natsutil"

	"github.com/faircredit/registry/common"
)

const natsProviderNotificationSubjectPrefix = "registry.provider"

const natsProviderRegisteredEvent = "registered"
const natsProviderEndorserAddedEvent = "endorser.added"
const natsProviderEndorserRemovedEvent = "endorser.removed"
const natsProviderClosedEvent = "closed"

// dispatchNotification emits a provider lifecycle event; notifications are
// best-effort and dispatched only after the instruction has committed
func (p *Provider) dispatchNotification(event string, params map[string]interface{}) {
	if params == nil {
		params = map[string]interface{}{}
	}
	params["address"] = p.Address
	params["wallet"] = p.Wallet

	payload, _ := json.Marshal(params)
	subject := fmt.Sprintf("%s.%s", natsProviderNotificationSubjectPrefix, event)

	_, err := natsutil.NatsJetstreamPublish(subject, payload)
	if err != nil {
		common.Log.Warningf("failed to dispatch %s notification for provider: %s; %s", event, *p.Address, err.Error())
		return
	}

	common.Log.Debugf("dispatched %s notification for provider: %s", event, *p.Address)
}
