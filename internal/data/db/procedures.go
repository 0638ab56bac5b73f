package db

type procedure struct {
	name string
	sql  string
}

// Step index is the zero-based rank of step_order among the journey's steps
// that still exist, matching how the read path builds its index table.
var procedures = []procedure{
	{name: "repair_journey_data", sql: repairJourneyDataSQL},
	{name: "delete_user_journey_completely", sql: deleteUserJourneyCompletelySQL},
	{name: "reset_journey_for_replay", sql: resetJourneyForReplaySQL},
}

const repairJourneyDataSQL = `
CREATE OR REPLACE FUNCTION repair_journey_data(p_user_id uuid, p_journey_id uuid)
RETURNS TABLE(success boolean, steps_processed integer, error_message text)
LANGUAGE plpgsql AS $$
DECLARE
	v_existing  jsonb;
	v_responses jsonb;
	v_points    integer;
	v_count     integer;
	v_total     integer;
BEGIN
	SELECT CASE WHEN jsonb_typeof(p.quiz_responses) = 'array' THEN p.quiz_responses ELSE '[]'::jsonb END
	  INTO v_existing
	  FROM user_journey_progress p
	 WHERE p.user_id = p_user_id AND p.journey_id = p_journey_id;
	v_existing := COALESCE(v_existing, '[]'::jsonb);

	WITH ordered AS (
		SELECT js.step_id, (ROW_NUMBER() OVER (ORDER BY js.step_order ASC) - 1)::integer AS step_index
		  FROM journey_steps js
		  JOIN steps s ON s.id = js.step_id
		 WHERE js.journey_id = p_journey_id
	), prior AS (
		SELECT (e->>'stepIndex')::integer AS step_index, e AS entry
		  FROM jsonb_array_elements(v_existing) e
		 WHERE jsonb_typeof(e) = 'object' AND (e->>'stepIndex') ~ '^[0-9]+$'
	)
	SELECT COALESCE(jsonb_agg(
	           COALESCE((SELECT pr.entry FROM prior pr WHERE pr.step_index = o.step_index LIMIT 1), '{}'::jsonb)
	           || jsonb_build_object('stepIndex', o.step_index, 'stepId', sc.step_id, 'points', sc.points_earned)
	           ORDER BY o.step_index), '[]'::jsonb),
	       COALESCE(SUM(sc.points_earned), 0)::integer,
	       COUNT(sc.id)::integer
	  INTO v_responses, v_points, v_count
	  FROM step_completions sc
	  JOIN ordered o ON o.step_id = sc.step_id
	 WHERE sc.user_id = p_user_id AND sc.journey_id = p_journey_id;

	SELECT COUNT(*)::integer INTO v_total
	  FROM journey_steps js
	  JOIN steps s ON s.id = js.step_id
	 WHERE js.journey_id = p_journey_id;

	UPDATE user_journey_progress
	   SET quiz_responses = v_responses,
	       total_points_earned = v_points,
	       is_completed = (v_total > 0 AND v_count >= v_total),
	       updated_at = now()
	 WHERE user_id = p_user_id AND journey_id = p_journey_id;

	IF NOT FOUND THEN
		INSERT INTO user_journey_progress
			(id, user_id, journey_id, current_step_order, is_completed, total_points_earned, quiz_responses, created_at, updated_at)
		VALUES
			(uuid_generate_v4(), p_user_id, p_journey_id, 1, (v_total > 0 AND v_count >= v_total), v_points, v_responses, now(), now())
		ON CONFLICT (user_id, journey_id) DO NOTHING;
	END IF;

	RETURN QUERY SELECT true, v_count, NULL::text;
EXCEPTION WHEN OTHERS THEN
	RETURN QUERY SELECT false, 0, SQLERRM;
END;
$$;`

const deleteUserJourneyCompletelySQL = `
CREATE OR REPLACE FUNCTION delete_user_journey_completely(p_user_id uuid, p_journey_id uuid)
RETURNS TABLE(success boolean, deleted_steps integer, deleted_progress integer, points_removed integer, error_message text)
LANGUAGE plpgsql AS $$
DECLARE
	v_points   integer;
	v_steps    integer;
	v_progress integer;
BEGIN
	SELECT COALESCE(SUM(points_earned), 0)::integer INTO v_points
	  FROM step_completions
	 WHERE user_id = p_user_id AND journey_id = p_journey_id;

	DELETE FROM step_completions WHERE user_id = p_user_id AND journey_id = p_journey_id;
	GET DIAGNOSTICS v_steps = ROW_COUNT;

	DELETE FROM user_journey_progress WHERE user_id = p_user_id AND journey_id = p_journey_id;
	GET DIAGNOSTICS v_progress = ROW_COUNT;

	UPDATE profiles
	   SET total_points = GREATEST(total_points - v_points, 0),
	       updated_at = now()
	 WHERE id = p_user_id;

	RETURN QUERY SELECT true, v_steps, v_progress, v_points, NULL::text;
EXCEPTION WHEN OTHERS THEN
	RETURN QUERY SELECT false, 0, 0, 0, SQLERRM;
END;
$$;`

const resetJourneyForReplaySQL = `
CREATE OR REPLACE FUNCTION reset_journey_for_replay(p_user_id uuid, p_journey_id uuid)
RETURNS TABLE(success boolean, deleted_steps integer, points_removed integer, progress_id uuid, error_message text)
LANGUAGE plpgsql AS $$
DECLARE
	v_points   integer;
	v_steps    integer;
	v_progress uuid;
BEGIN
	SELECT COALESCE(SUM(points_earned), 0)::integer INTO v_points
	  FROM step_completions
	 WHERE user_id = p_user_id AND journey_id = p_journey_id;

	DELETE FROM step_completions WHERE user_id = p_user_id AND journey_id = p_journey_id;
	GET DIAGNOSTICS v_steps = ROW_COUNT;

	DELETE FROM user_journey_progress WHERE user_id = p_user_id AND journey_id = p_journey_id;

	INSERT INTO user_journey_progress
		(id, user_id, journey_id, current_step_order, is_completed, total_points_earned, quiz_responses, created_at, updated_at)
	VALUES
		(uuid_generate_v4(), p_user_id, p_journey_id, 1, false, 0, '[]'::jsonb, now(), now())
	RETURNING id INTO v_progress;

	UPDATE profiles
	   SET total_points = GREATEST(total_points - v_points, 0),
	       updated_at = now()
	 WHERE id = p_user_id;

	RETURN QUERY SELECT true, v_steps, v_points, v_progress, NULL::text;
EXCEPTION WHEN OTHERS THEN
	RETURN QUERY SELECT false, 0, 0, NULL::uuid, SQLERRM;
END;
$$;`
