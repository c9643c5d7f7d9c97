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

package resource

import (
	"encoding/json"
	"fmt"

	natsutil "github.com/kthomas/go-natsutil"

	"github.com/faircredit/registry/common"
)

const natsResourceNotificationSubjectPrefix = "registry.resource"
const natsSubmissionNotificationSubjectPrefix = "registry.submission"

const natsResourceCreatedEvent = "created"
const natsResourceClosedEvent = "closed"

const natsSubmissionCreatedEvent = "created"
const natsSubmissionGradedEvent = "graded"
const natsSubmissionAcceptedEvent = "accepted"
const natsSubmissionReturnedEvent = "returned"

// dispatchNotification emits a resource lifecycle event; notifications are
// best-effort and dispatched only after the instruction has committed
func (r *Resource) dispatchNotification(event string, params map[string]interface{}) {
	if params == nil {
		params = map[string]interface{}{}
	}
	params["address"] = r.Address
	params["course"] = r.Course

	payload, _ := json.Marshal(params)
	subject := fmt.Sprintf("%s.%s", natsResourceNotificationSubjectPrefix, event)

	_, err := natsutil.NatsJetstreamPublish(subject, payload)
	if err != nil {
		common.Log.Warningf("failed to dispatch %s notification for resource: %s; %s", event, *r.Address, err.Error())
		return
	}

	common.Log.Debugf("dispatched %s notification for resource: %s", event, *r.Address)
}

// dispatchNotification emits a submission lifecycle event
func (s *Submission) dispatchNotification(event string, params map[string]interface{}) {
	if params == nil {
		params = map[string]interface{}{}
	}
	params["address"] = s.Address
	params["resource"] = s.Resource
	params["student"] = s.Student

	payload, _ := json.Marshal(params)
	subject := fmt.Sprintf("%s.%s", natsSubmissionNotificationSubjectPrefix, event)

	_, err := natsutil.NatsJetstreamPublish(subject, payload)
	if err != nil {
		common.Log.Warningf("failed to dispatch %s notification for submission: %s; %s", event, *s.Address, err.Error())
		return
	}

	common.Log.Debugf("dispatched %s notification for submission: %s", event, *s.Address)
}
