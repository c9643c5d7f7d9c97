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

package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	dbconf "github.com/kthomas/go-db-config"
	natsutil "github.com/kthomas/go-natsutil"
	"github.com/nats-io/nats.go"

	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/store"
)

const defaultNatsStream = "registry"

const natsCourseClosedSubject = "registry.course.closed"
const natsCourseClosedMaxInFlight = 32
const courseClosedAckWait = time.Minute * 5
const courseClosedMaxDeliveries = 5

const natsProviderRegisteredSubject = "registry.provider.registered"
const natsProviderRegisteredMaxInFlight = 32
const providerRegisteredAckWait = time.Minute * 5
const providerRegisteredMaxDeliveries = 5

func init() {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("hub package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	var waitGroup sync.WaitGroup

	createNatsCourseClosedSubscriptions(&waitGroup)
	createNatsProviderRegisteredSubscriptions(&waitGroup)
}

func createNatsCourseClosedSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			courseClosedAckWait,
			natsCourseClosedSubject,
			natsCourseClosedSubject,
			natsCourseClosedSubject,
			consumeCourseClosedMsg,
			courseClosedAckWait,
			natsCourseClosedMaxInFlight,
			courseClosedMaxDeliveries,
			nil,
		)
	}
}

func createNatsProviderRegisteredSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			providerRegisteredAckWait,
			natsProviderRegisteredSubject,
			natsProviderRegisteredSubject,
			natsProviderRegisteredSubject,
			consumeProviderRegisteredMsg,
			providerRegisteredAckWait,
			natsProviderRegisteredMaxInFlight,
			providerRegisteredMaxDeliveries,
			nil,
		)
	}
}

// consumeCourseClosedMsg performs the best-effort removal of a closed course
// from the hub acceptance set and any course list shard referencing it; the
// course may never have been accepted, which is tolerated
func consumeCourseClosedMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during closed course acceptance cleanup; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS course closed message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal course closed message; %s", err.Error())
		msg.Nak()
		return
	}

	courseAddress, courseAddressOk := params["address"].(string)
	if !courseAddressOk {
		common.Log.Warning("failed to unmarshal course address during closed course message handler")
		msg.Nak()
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := Current(tx)
	if h == nil {
		msg.Ack()
		return
	}

	now := common.DefaultClock.Now().Unix()
	if err := h.RemoveCourse(courseAddress, now); err == nil {
		if err := h.save(tx); err != nil {
			common.Log.Warningf("failed to remove closed course %s from hub acceptance set; %s", courseAddress, err.Error())
			msg.Nak()
			return
		}
		if err := store.Append(tx, *h.Address, "remove_accepted_course", []byte(courseAddress)); err != nil {
			common.Log.Warningf("failed to journal removal of closed course %s from hub acceptance set; %s", courseAddress, err.Error())
			msg.Nak()
			return
		}
	}

	var shards []*CourseList
	tx.Where("? = ANY(courses)", courseAddress).Find(&shards)
	for _, shard := range shards {
		if err := shard.RemoveCourse(courseAddress, now); err == nil {
			if err := shard.save(tx); err != nil {
				common.Log.Warningf("failed to remove closed course %s from course list shard %d; %s", courseAddress, shard.Index, err.Error())
				msg.Nak()
				return
			}
			if err := store.Append(tx, *shard.Address, "remove_course_from_list", []byte(courseAddress)); err != nil {
				common.Log.Warningf("failed to journal removal of closed course %s from course list shard %d; %s", courseAddress, shard.Index, err.Error())
				msg.Nak()
				return
			}
		}
	}

	tx.Commit()
	msg.Ack()
}

// consumeProviderRegisteredMsg auto-accepts newly registered providers when
// the hub policy does not require explicit approval
func consumeProviderRegisteredMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during provider auto-acceptance; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS provider registered message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal provider registered message; %s", err.Error())
		msg.Nak()
		return
	}

	providerWallet, providerWalletOk := params["wallet"].(string)
	if !providerWalletOk {
		common.Log.Warning("failed to unmarshal provider wallet during registered message handler")
		msg.Nak()
		return
	}

	db := dbconf.DatabaseConnection()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	h := Current(tx)
	if h == nil || h.Config.RequireProviderApproval {
		msg.Ack()
		return
	}

	if err := h.AddProvider(providerWallet, common.DefaultClock.Now().Unix()); err != nil {
		common.Log.Warningf("failed to auto-accept provider %s; %s", providerWallet, err.Error())
		msg.Ack()
		return
	}

	if err := h.save(tx); err != nil {
		common.Log.Warningf("failed to auto-accept provider %s; %s", providerWallet, err.Error())
		msg.Nak()
		return
	}

	if err := store.Append(tx, *h.Address, "add_accepted_provider", msg.Data); err != nil {
		common.Log.Warningf("failed to journal provider auto-acceptance; %s", err.Error())
		msg.Nak()
		return
	}

	tx.Commit()
	common.Log.Debugf("auto-accepted provider %s per hub policy", providerWallet)
	msg.Ack()
}
